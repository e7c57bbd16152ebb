package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/alerts"
	"github.com/carepulse/carepulse/internal/store"
)

func TestDisabledBot(t *testing.T) {
	b, err := NewBot(Config{}, nil, nil, nil, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, b.Enabled())
	require.NoError(t, b.Start())
	b.Broadcast(alerts.Alert{Kind: alerts.KindMissedDose})
	assert.NoError(t, b.SendDigest("digest"))
	b.Stop()
}

func TestSubscriberPersistence(t *testing.T) {
	st, err := store.NewMemory()
	require.NoError(t, err)
	defer st.Close()

	b := &Bot{
		store:       st,
		logger:      zap.NewNop(),
		subscribers: make(map[int64]bool),
	}

	b.subscribe(101)
	b.subscribe(202)
	b.unsubscribe(101)

	restored := &Bot{
		store:       st,
		logger:      zap.NewNop(),
		subscribers: make(map[int64]bool),
	}
	restored.loadSubscribers()

	assert.Equal(t, []int64{202}, restored.subscriberIDs())
}
