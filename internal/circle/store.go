package circle

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/carepulse/carepulse/internal/errors"
)

// Store persists users, circles and memberships
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a circle store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// CreateUser registers a new account
func (s *Store) CreateUser(name, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
	}
	if err := s.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies credentials and returns the user
func (s *Store) Authenticate(email, password string) (*User, error) {
	u, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, errors.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errors.ErrUnauthorized
	}
	return u, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(id string) (*User, error) {
	var u User
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var u User
	err := s.db.First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateCircle creates a circle with the given patient as its first
// member
func (s *Store) CreateCircle(name, patientUserID string) (*Circle, error) {
	if _, err := s.GetUser(patientUserID); err != nil {
		return nil, err
	}

	c := &Circle{Name: name}
	if err := s.db.Create(c).Error; err != nil {
		return nil, err
	}

	m := &Membership{CircleID: c.ID, UserID: patientUserID, Role: RolePatient}
	if err := s.db.Create(m).Error; err != nil {
		return nil, err
	}

	return c, nil
}

// AddCaregiver adds a caregiver to a circle
func (s *Store) AddCaregiver(circleID, userID string) (*Membership, error) {
	if _, err := s.GetUser(userID); err != nil {
		return nil, err
	}

	m := &Membership{CircleID: circleID, UserID: userID, Role: RoleCaregiver}
	if err := s.db.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember removes a user from a circle
func (s *Store) RemoveMember(circleID, userID string) error {
	res := s.db.Delete(&Membership{}, "circle_id = ? AND user_id = ?", circleID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotMember
	}
	return nil
}

// Members lists all memberships of a circle
func (s *Store) Members(circleID string) ([]Membership, error) {
	var members []Membership
	err := s.db.Where("circle_id = ?", circleID).Order("created_at ASC").Find(&members).Error
	return members, err
}

// IsMember reports whether the user belongs to the circle
func (s *Store) IsMember(circleID, userID string) (bool, error) {
	var count int64
	err := s.db.Model(&Membership{}).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Count(&count).Error
	return count > 0, err
}

// Patient returns the circle's patient
func (s *Store) Patient(circleID string) (*User, error) {
	var m Membership
	err := s.db.First(&m, "circle_id = ? AND role = ?", circleID, RolePatient).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNoPatient
		}
		return nil, err
	}
	return s.GetUser(m.UserID)
}

// CirclesForUser lists circles the user belongs to
func (s *Store) CirclesForUser(userID string) ([]Circle, error) {
	var circles []Circle
	err := s.db.
		Joins("JOIN memberships ON memberships.circle_id = circles.id").
		Where("memberships.user_id = ?", userID).
		Find(&circles).Error
	return circles, err
}
