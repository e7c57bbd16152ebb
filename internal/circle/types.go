package circle

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a member can hold within a care circle.
const (
	RolePatient   = "patient"
	RoleCaregiver = "caregiver"
)

// User represents an account that can sign in
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `json:"name"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Circle groups a patient with their caregivers
type Circle struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership links a user to a circle with a role
type Membership struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CircleID  string    `gorm:"index:idx_circle_user" json:"circle_id"`
	UserID    string    `gorm:"index:idx_circle_user" json:"user_id"`
	Role      string    `json:"role"` // patient, caregiver
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook for User
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = "usr_" + uuid.NewString()
	}
	return nil
}

// BeforeCreate hook for Circle
func (c *Circle) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = "cir_" + uuid.NewString()
	}
	return nil
}

// BeforeCreate hook for Membership
func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = "mem_" + uuid.NewString()
	}
	if m.Role == "" {
		m.Role = RoleCaregiver
	}
	return nil
}
