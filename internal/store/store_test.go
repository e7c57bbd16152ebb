package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetSession("tok123", []byte(`{"user":"usr_1"}`), time.Hour))

	val, err := s.GetSession("tok123")
	require.NoError(t, err)
	assert.Equal(t, `{"user":"usr_1"}`, string(val))

	require.NoError(t, s.DeleteSession("tok123"))

	_, err = s.GetSession("tok123")
	assert.Error(t, err)
}

func TestKVRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetKV("alerts:last_day", []byte("2026-03-10")))

	val, err := s.GetKV("alerts:last_day")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", string(val))

	require.NoError(t, s.DeleteKV("alerts:last_day"))

	_, err = s.GetKV("alerts:last_day")
	assert.Error(t, err)
}

func TestMigratedSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"medicines", "appointments", "users", "circles", "memberships", "scans"} {
		assert.True(t, s.DB().Migrator().HasTable(table), "missing table %s", table)
	}
}
