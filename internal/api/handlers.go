package api

import (
	stderrors "errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/appointment"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/errors"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/metrics"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "healthy",
		"version":       "0.1.0",
		"alerts_active": s.engine != nil && s.engine.IsRunning(),
		"timestamp":     time.Now().Unix(),
	})
}

func (s *Server) handleGreeting(c *fiber.Ctx) error {
	now := s.clk.Now()
	return c.JSON(fiber.Map{
		"greeting": clock.Greeting(now),
		"clock":    clock.DisplayClock(now),
		"date":     clock.FormatDate(now),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(metrics.GetPrometheus())
}

func (s *Server) handleMetricsJSON(c *fiber.Ctx) error {
	return c.JSON(metrics.GetSnapshot())
}

// ==================== Auth ====================

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(400).JSON(fiber.Map{"error": "email and password are required"})
	}

	user, err := s.circles.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return c.Status(409).JSON(fiber.Map{"error": "email already registered"})
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.Status(201).JSON(fiber.Map{"token": token, "user": user})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	user, err := s.circles.Authenticate(req.Email, req.Password)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "invalid credentials"})
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": token, "user": user})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	user, err := s.circles.GetUser(s.userID(c))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "user not found"})
	}
	return c.JSON(user)
}

// ==================== Medicines ====================

func (s *Server) handleListMedicines(c *fiber.Ctx) error {
	meds, err := s.medicines.List(c.Query("patient_id"))
	if err != nil {
		s.logger.Error("Failed to list medicines", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medicines"})
	}
	return c.JSON(meds)
}

func (s *Server) handleCreateMedicine(c *fiber.Ctx) error {
	var req struct {
		PatientID       string `json:"patient_id"`
		Name            string `json:"name"`
		Dosage          string `json:"dosage"`
		Schedule        string `json:"schedule"`
		TotalPills      int    `json:"total_pills"`
		RefillThreshold int    `json:"refill_threshold"`
		Prescriber      string `json:"prescriber"`
		Notes           string `json:"notes"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	m := &medicine.Medicine{
		PatientID:       req.PatientID,
		Name:            req.Name,
		Dosage:          req.Dosage,
		Schedule:        req.Schedule,
		PillsRemaining:  req.TotalPills,
		TotalPills:      req.TotalPills,
		RefillThreshold: req.RefillThreshold,
		Prescriber:      req.Prescriber,
		Notes:           req.Notes,
	}

	if err := s.medicines.Create(m); err != nil {
		s.logger.Error("Failed to create medicine", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to create medicine"})
	}

	return c.Status(201).JSON(m)
}

func (s *Server) handleGetMedicine(c *fiber.Ctx) error {
	m, err := s.medicines.Get(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "medicine not found"})
	}
	return c.JSON(m)
}

func (s *Server) handleUpdateMedicine(c *fiber.Ctx) error {
	m, err := s.medicines.Get(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "medicine not found"})
	}

	if err := c.BodyParser(m); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	m.ID = c.Params("id")

	if err := s.medicines.Update(m); err != nil {
		s.logger.Error("Failed to update medicine", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to update medicine"})
	}

	return c.JSON(m)
}

func (s *Server) handleDeleteMedicine(c *fiber.Ctx) error {
	if err := s.medicines.Delete(c.Params("id")); err != nil {
		if stderrors.Is(err, errors.ErrMedicineNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "medicine not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete medicine"})
	}
	return c.SendStatus(204)
}

func (s *Server) handleTakeMedicine(c *fiber.Ctx) error {
	id := c.Params("id")

	if !s.engine.TakeNow(id) {
		return c.Status(409).JSON(fiber.Map{"error": "could not record dose"})
	}

	m, err := s.medicines.Get(id)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "medicine not found"})
	}
	return c.JSON(m)
}

func (s *Server) handleRefillMedicine(c *fiber.Ctx) error {
	var req struct {
		Amount int `json:"amount"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be positive"})
	}

	id := c.Params("id")
	if !s.medicines.Refill(id, req.Amount) {
		return c.Status(404).JSON(fiber.Map{"error": "medicine not found"})
	}
	metrics.RecordRefill()

	m, err := s.medicines.Get(id)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "medicine not found"})
	}
	return c.JSON(m)
}

// ==================== Appointments ====================

func (s *Server) handleListAppointments(c *fiber.Ctx) error {
	patientID := c.Query("patient_id")

	var (
		apts []appointment.Appointment
		err  error
	)
	if c.QueryBool("upcoming", false) {
		apts, err = s.appointments.ListUpcoming(patientID, s.clk.Now())
	} else {
		apts, err = s.appointments.List(patientID)
	}
	if err != nil {
		s.logger.Error("Failed to list appointments", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list appointments"})
	}
	return c.JSON(apts)
}

func (s *Server) handleCreateAppointment(c *fiber.Ctx) error {
	var req struct {
		PatientID string    `json:"patient_id"`
		Title     string    `json:"title"`
		Doctor    string    `json:"doctor"`
		Location  string    `json:"location"`
		Notes     string    `json:"notes"`
		StartsAt  time.Time `json:"starts_at"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if req.StartsAt.IsZero() {
		return c.Status(400).JSON(fiber.Map{"error": "starts_at is required"})
	}

	a := &appointment.Appointment{
		PatientID: req.PatientID,
		Title:     req.Title,
		Doctor:    req.Doctor,
		Location:  req.Location,
		Notes:     req.Notes,
		StartsAt:  req.StartsAt,
	}

	if err := s.appointments.Create(a); err != nil {
		s.logger.Error("Failed to create appointment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to create appointment"})
	}

	return c.Status(201).JSON(a)
}

func (s *Server) handleGetAppointment(c *fiber.Ctx) error {
	a, err := s.appointments.Get(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "appointment not found"})
	}
	return c.JSON(a)
}

func (s *Server) handleUpdateAppointment(c *fiber.Ctx) error {
	a, err := s.appointments.Get(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "appointment not found"})
	}

	if err := c.BodyParser(a); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	a.ID = c.Params("id")

	if err := s.appointments.Update(a); err != nil {
		s.logger.Error("Failed to update appointment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to update appointment"})
	}

	return c.JSON(a)
}

func (s *Server) handleDeleteAppointment(c *fiber.Ctx) error {
	if err := s.appointments.Delete(c.Params("id")); err != nil {
		if stderrors.Is(err, errors.ErrAppointmentNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "appointment not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete appointment"})
	}
	return c.SendStatus(204)
}

// ==================== Notifications ====================

func (s *Server) handleNotifications(c *fiber.Ctx) error {
	items := s.feed.All(s.clk.Now())
	metrics.RecordNotifications(int64(len(items)))
	return c.JSON(items)
}

func (s *Server) handleNotificationCount(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"count": s.feed.Count(s.clk.Now())})
}

func (s *Server) handleAlertTick(c *fiber.Ctx) error {
	s.engine.Tick()
	return c.JSON(fiber.Map{"status": "ok"})
}

// ==================== Prescriptions ====================

func (s *Server) handleScanPrescription(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "no image provided"})
	}

	f, err := file.Open()
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "could not read image"})
	}
	defer f.Close()

	imageData, err := io.ReadAll(f)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "could not read image"})
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	scan, result, err := s.prescriptions.ScanAndImport(c.Context(), c.FormValue("patient_id"), imageData, mimeType)
	if err != nil {
		if stderrors.Is(err, errors.ErrScannerNotConfigured) || errors.GetCode(err) == errors.ErrScannerUnavailable.Code {
			return c.Status(503).JSON(fiber.Map{"error": err.Error()})
		}
		s.logger.Error("Prescription scan failed", zap.Error(err))
		return c.Status(502).JSON(fiber.Map{"error": "prescription scan failed", "scan": scan})
	}

	return c.Status(201).JSON(fiber.Map{"scan": scan, "result": result})
}

func (s *Server) handleScanHistory(c *fiber.Ctx) error {
	scans, err := s.prescriptions.History(c.Query("patient_id"), c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list scans"})
	}
	return c.JSON(scans)
}

// ==================== Care circles ====================

func (s *Server) handleListCircles(c *fiber.Ctx) error {
	circles, err := s.circles.CirclesForUser(s.userID(c))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list circles"})
	}
	return c.JSON(circles)
}

func (s *Server) handleCreateCircle(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		req.Name = "Care Circle"
	}

	circle, err := s.circles.CreateCircle(req.Name, s.userID(c))
	if err != nil {
		s.logger.Error("Failed to create circle", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to create circle"})
	}

	return c.Status(201).JSON(circle)
}

func (s *Server) handleListMembers(c *fiber.Ctx) error {
	circleID := c.Params("id")

	if err := s.requireMember(circleID, s.userID(c)); err != nil {
		return c.Status(403).JSON(fiber.Map{"error": "not a member of this circle"})
	}

	members, err := s.circles.Members(circleID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list members"})
	}
	return c.JSON(members)
}

func (s *Server) handleAddCaregiver(c *fiber.Ctx) error {
	circleID := c.Params("id")

	if err := s.requireMember(circleID, s.userID(c)); err != nil {
		return c.Status(403).JSON(fiber.Map{"error": "not a member of this circle"})
	}

	var req struct {
		Email string `json:"email"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	user, err := s.circles.GetUserByEmail(req.Email)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "no account with that email"})
	}

	membership, err := s.circles.AddCaregiver(circleID, user.ID)
	if err != nil {
		s.logger.Error("Failed to add caregiver", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to add caregiver"})
	}

	return c.Status(201).JSON(membership)
}

func (s *Server) handleRemoveMember(c *fiber.Ctx) error {
	circleID := c.Params("id")

	if err := s.requireMember(circleID, s.userID(c)); err != nil {
		return c.Status(403).JSON(fiber.Map{"error": "not a member of this circle"})
	}

	if err := s.circles.RemoveMember(circleID, c.Params("userId")); err != nil {
		if stderrors.Is(err, errors.ErrNotMember) {
			return c.Status(404).JSON(fiber.Map{"error": "membership not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to remove member"})
	}
	return c.SendStatus(204)
}

func (s *Server) requireMember(circleID, userID string) error {
	ok, err := s.circles.IsMember(circleID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrForbidden
	}
	return nil
}
