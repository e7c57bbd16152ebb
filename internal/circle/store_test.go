package circle

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &Circle{}, &Membership{}))

	return NewStore(db, zap.NewNop())
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	s := newTestStore(t)

	u, err := s.CreateUser("Asha", "Asha@Example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.NotContains(t, u.PasswordHash, "secret123")

	got, err := s.Authenticate("asha@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate("asha@example.com", "wrong")
	assert.Error(t, err)

	_, err = s.Authenticate("nobody@example.com", "secret123")
	assert.Error(t, err)
}

func TestDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateUser("Asha", "asha@example.com", "secret123")
	require.NoError(t, err)

	_, err = s.CreateUser("Other", "asha@example.com", "other")
	assert.Error(t, err)
}

func TestCircleMembership(t *testing.T) {
	s := newTestStore(t)

	patient, err := s.CreateUser("Ravi", "ravi@example.com", "pw")
	require.NoError(t, err)
	caregiver, err := s.CreateUser("Asha", "asha@example.com", "pw")
	require.NoError(t, err)

	c, err := s.CreateCircle("Ravi's Care", patient.ID)
	require.NoError(t, err)

	_, err = s.AddCaregiver(c.ID, caregiver.ID)
	require.NoError(t, err)

	members, err := s.Members(c.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, RolePatient, members[0].Role)
	assert.Equal(t, RoleCaregiver, members[1].Role)

	ok, err := s.IsMember(c.ID, caregiver.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(c.ID, "usr_stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := s.Patient(c.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, p.ID)

	circles, err := s.CirclesForUser(caregiver.ID)
	require.NoError(t, err)
	require.Len(t, circles, 1)
	assert.Equal(t, c.ID, circles[0].ID)
}

func TestRemoveMember(t *testing.T) {
	s := newTestStore(t)

	patient, err := s.CreateUser("Ravi", "ravi@example.com", "pw")
	require.NoError(t, err)

	c, err := s.CreateCircle("Ravi's Care", patient.ID)
	require.NoError(t, err)

	require.NoError(t, s.RemoveMember(c.ID, patient.ID))
	assert.Error(t, s.RemoveMember(c.ID, patient.ID))
}

func TestPasswordHashing(t *testing.T) {
	s := newTestStore(t)

	u1, err := s.CreateUser("Asha", "asha@example.com", "secret123")
	require.NoError(t, err)
	u2, err := s.CreateUser("Ravi", "ravi@example.com", "secret123")
	require.NoError(t, err)

	// bcrypt salts every hash: same password, different hashes.
	assert.NotEqual(t, u1.PasswordHash, u2.PasswordHash)
	assert.True(t, strings.HasPrefix(u1.PasswordHash, "$2a$"))

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u1.PasswordHash), []byte("secret123")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(u1.PasswordHash), []byte("other")))
}
