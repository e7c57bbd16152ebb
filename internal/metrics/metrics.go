package metrics

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	startTime time.Time

	ticksTotal  atomic.Int64
	ticksFailed atomic.Int64

	alertsEmitted    atomic.Int64
	alertsSuppressed atomic.Int64

	notificationsComputed atomic.Int64

	dosesTaken  atomic.Int64
	doseFailed  atomic.Int64
	refillsDone atomic.Int64

	scansTotal   atomic.Int64
	scansSuccess atomic.Int64
	scansFailed  atomic.Int64

	digestsSent atomic.Int64

	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsFailed  atomic.Int64

	activeConnections atomic.Int64

	tickDurations     []time.Duration
	tickDurationsLock sync.Mutex

	alertsByKind map[string]*atomic.Int64
	alertsLock   sync.Mutex

	channelSends map[string]*atomic.Int64
	channelLock  sync.Mutex
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func New() *Metrics {
	m := &Metrics{
		startTime:     time.Now(),
		tickDurations: make([]time.Duration, 0, 1000),
		alertsByKind:  make(map[string]*atomic.Int64),
		channelSends:  make(map[string]*atomic.Int64),
	}
	return m
}

func (m *Metrics) RecordTick(success bool) {
	m.ticksTotal.Add(1)
	if !success {
		m.ticksFailed.Add(1)
	}
}

func (m *Metrics) RecordAlert(kind string, suppressed bool) {
	if suppressed {
		m.alertsSuppressed.Add(1)
		return
	}
	m.alertsEmitted.Add(1)

	m.alertsLock.Lock()
	defer m.alertsLock.Unlock()

	if m.alertsByKind[kind] == nil {
		m.alertsByKind[kind] = &atomic.Int64{}
	}
	m.alertsByKind[kind].Add(1)
}

func (m *Metrics) RecordNotifications(count int64) {
	m.notificationsComputed.Add(count)
}

func (m *Metrics) RecordDose(success bool) {
	if success {
		m.dosesTaken.Add(1)
	} else {
		m.doseFailed.Add(1)
	}
}

func (m *Metrics) RecordRefill() {
	m.refillsDone.Add(1)
}

func (m *Metrics) RecordScan(success bool) {
	m.scansTotal.Add(1)
	if success {
		m.scansSuccess.Add(1)
	} else {
		m.scansFailed.Add(1)
	}
}

func (m *Metrics) RecordDigest() {
	m.digestsSent.Add(1)
}

func (m *Metrics) RecordRequest(success bool) {
	m.requestsTotal.Add(1)
	if success {
		m.requestsSuccess.Add(1)
	} else {
		m.requestsFailed.Add(1)
	}
}

func (m *Metrics) RecordChannelSend(channel string) {
	m.channelLock.Lock()
	defer m.channelLock.Unlock()

	if m.channelSends[channel] == nil {
		m.channelSends[channel] = &atomic.Int64{}
	}
	m.channelSends[channel].Add(1)
}

func (m *Metrics) RecordTickDuration(d time.Duration) {
	m.tickDurationsLock.Lock()
	defer m.tickDurationsLock.Unlock()

	m.tickDurations = append(m.tickDurations, d)
	if len(m.tickDurations) > 1000 {
		m.tickDurations = m.tickDurations[1:]
	}
}

func (m *Metrics) IncrementActiveConnections() {
	m.activeConnections.Add(1)
}

func (m *Metrics) DecrementActiveConnections() {
	m.activeConnections.Add(-1)
}

type Snapshot struct {
	Uptime                time.Duration    `json:"uptime"`
	TicksTotal            int64            `json:"ticks_total"`
	TicksFailed           int64            `json:"ticks_failed"`
	AlertsEmitted         int64            `json:"alerts_emitted"`
	AlertsSuppressed      int64            `json:"alerts_suppressed"`
	NotificationsComputed int64            `json:"notifications_computed"`
	DosesTaken            int64            `json:"doses_taken"`
	DoseFailed            int64            `json:"dose_failed"`
	RefillsDone           int64            `json:"refills_done"`
	ScansTotal            int64            `json:"scans_total"`
	ScansSuccess          int64            `json:"scans_success"`
	ScansFailed           int64            `json:"scans_failed"`
	DigestsSent           int64            `json:"digests_sent"`
	RequestsTotal         int64            `json:"requests_total"`
	RequestsSuccess       int64            `json:"requests_success"`
	RequestsFailed        int64            `json:"requests_failed"`
	ActiveConnections     int64            `json:"active_connections"`
	AvgTickDuration       time.Duration    `json:"avg_tick_duration"`
	P99TickDuration       time.Duration    `json:"p99_tick_duration"`
	AlertsByKind          map[string]int64 `json:"alerts_by_kind"`
	ChannelSends          map[string]int64 `json:"channel_sends"`
	SuccessRate           float64          `json:"success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:                time.Since(m.startTime),
		TicksTotal:            m.ticksTotal.Load(),
		TicksFailed:           m.ticksFailed.Load(),
		AlertsEmitted:         m.alertsEmitted.Load(),
		AlertsSuppressed:      m.alertsSuppressed.Load(),
		NotificationsComputed: m.notificationsComputed.Load(),
		DosesTaken:            m.dosesTaken.Load(),
		DoseFailed:            m.doseFailed.Load(),
		RefillsDone:           m.refillsDone.Load(),
		ScansTotal:            m.scansTotal.Load(),
		ScansSuccess:          m.scansSuccess.Load(),
		ScansFailed:           m.scansFailed.Load(),
		DigestsSent:           m.digestsSent.Load(),
		RequestsTotal:         m.requestsTotal.Load(),
		RequestsSuccess:       m.requestsSuccess.Load(),
		RequestsFailed:        m.requestsFailed.Load(),
		ActiveConnections:     m.activeConnections.Load(),
		AlertsByKind:          make(map[string]int64),
		ChannelSends:          make(map[string]int64),
	}

	if s.RequestsTotal > 0 {
		s.SuccessRate = float64(s.RequestsSuccess) / float64(s.RequestsTotal) * 100
	}

	m.tickDurationsLock.Lock()
	if len(m.tickDurations) > 0 {
		var total time.Duration
		for _, d := range m.tickDurations {
			total += d
		}
		s.AvgTickDuration = total / time.Duration(len(m.tickDurations))

		sorted := make([]time.Duration, len(m.tickDurations))
		copy(sorted, m.tickDurations)
		for i := 0; i < len(sorted)-1; i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		p99Index := int(float64(len(sorted)) * 0.99)
		if p99Index >= len(sorted) {
			p99Index = len(sorted) - 1
		}
		s.P99TickDuration = sorted[p99Index]
	}
	m.tickDurationsLock.Unlock()

	m.alertsLock.Lock()
	for k, v := range m.alertsByKind {
		s.AlertsByKind[k] = v.Load()
	}
	m.alertsLock.Unlock()

	m.channelLock.Lock()
	for k, v := range m.channelSends {
		s.ChannelSends[k] = v.Load()
	}
	m.channelLock.Unlock()

	return s
}

func (m *Metrics) Prometheus() string {
	var sb strings.Builder

	sb.WriteString("# HELP carepulse_uptime_seconds Time since server start\n")
	sb.WriteString("# TYPE carepulse_uptime_seconds gauge\n")
	sb.WriteString("carepulse_uptime_seconds " + strconv.FormatInt(int64(time.Since(m.startTime).Seconds()), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_ticks_total Total alert engine ticks\n")
	sb.WriteString("# TYPE carepulse_ticks_total counter\n")
	sb.WriteString("carepulse_ticks_total " + strconv.FormatInt(m.ticksTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_ticks_failed Alert engine ticks that errored\n")
	sb.WriteString("# TYPE carepulse_ticks_failed counter\n")
	sb.WriteString("carepulse_ticks_failed " + strconv.FormatInt(m.ticksFailed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_alerts_emitted Alerts emitted to channels\n")
	sb.WriteString("# TYPE carepulse_alerts_emitted counter\n")
	sb.WriteString("carepulse_alerts_emitted " + strconv.FormatInt(m.alertsEmitted.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_alerts_suppressed Alerts suppressed by dedup\n")
	sb.WriteString("# TYPE carepulse_alerts_suppressed counter\n")
	sb.WriteString("carepulse_alerts_suppressed " + strconv.FormatInt(m.alertsSuppressed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_notifications_computed Notification items computed\n")
	sb.WriteString("# TYPE carepulse_notifications_computed counter\n")
	sb.WriteString("carepulse_notifications_computed " + strconv.FormatInt(m.notificationsComputed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_doses_taken Doses marked taken\n")
	sb.WriteString("# TYPE carepulse_doses_taken counter\n")
	sb.WriteString("carepulse_doses_taken " + strconv.FormatInt(m.dosesTaken.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_refills_done Medicine refills recorded\n")
	sb.WriteString("# TYPE carepulse_refills_done counter\n")
	sb.WriteString("carepulse_refills_done " + strconv.FormatInt(m.refillsDone.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_scans_total Prescription scans attempted\n")
	sb.WriteString("# TYPE carepulse_scans_total counter\n")
	sb.WriteString("carepulse_scans_total " + strconv.FormatInt(m.scansTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_digests_sent Daily digests delivered\n")
	sb.WriteString("# TYPE carepulse_digests_sent counter\n")
	sb.WriteString("carepulse_digests_sent " + strconv.FormatInt(m.digestsSent.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_requests_total Total API requests\n")
	sb.WriteString("# TYPE carepulse_requests_total counter\n")
	sb.WriteString("carepulse_requests_total " + strconv.FormatInt(m.requestsTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP carepulse_active_connections Active websocket connections\n")
	sb.WriteString("# TYPE carepulse_active_connections gauge\n")
	sb.WriteString("carepulse_active_connections " + strconv.FormatInt(m.activeConnections.Load(), 10) + "\n\n")

	m.alertsLock.Lock()
	for kind, count := range m.alertsByKind {
		sb.WriteString("# HELP carepulse_alerts_by_kind Alerts emitted per kind\n")
		sb.WriteString("# TYPE carepulse_alerts_by_kind counter\n")
		sb.WriteString("carepulse_alerts_by_kind{kind=\"" + kind + "\"} " + strconv.FormatInt(count.Load(), 10) + "\n\n")
	}
	m.alertsLock.Unlock()

	m.channelLock.Lock()
	for channel, count := range m.channelSends {
		sb.WriteString("# HELP carepulse_channel_sends Alerts sent per channel\n")
		sb.WriteString("# TYPE carepulse_channel_sends counter\n")
		sb.WriteString("carepulse_channel_sends{channel=\"" + channel + "\"} " + strconv.FormatInt(count.Load(), 10) + "\n\n")
	}
	m.channelLock.Unlock()

	return sb.String()
}

func RecordTick(success bool) {
	Default().RecordTick(success)
}

func RecordAlert(kind string, suppressed bool) {
	Default().RecordAlert(kind, suppressed)
}

func RecordNotifications(count int64) {
	Default().RecordNotifications(count)
}

func RecordDose(success bool) {
	Default().RecordDose(success)
}

func RecordRefill() {
	Default().RecordRefill()
}

func RecordScan(success bool) {
	Default().RecordScan(success)
}

func RecordDigest() {
	Default().RecordDigest()
}

func RecordRequest(success bool) {
	Default().RecordRequest(success)
}

func RecordChannelSend(channel string) {
	Default().RecordChannelSend(channel)
}

func RecordTickDuration(d time.Duration) {
	Default().RecordTickDuration(d)
}

func GetSnapshot() *Snapshot {
	return Default().Snapshot()
}

func GetPrometheus() string {
	return Default().Prometheus()
}
