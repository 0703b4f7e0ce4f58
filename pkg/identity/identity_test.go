package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot(t *testing.T) {
	user := &User{
		ID:          42,
		Email:       "alice@example.com",
		Username:    "alice",
		DisplayName: "Alice Doe",
		Status:      StatusEnabled,
	}

	now := time.Now()
	snap, err := NewSnapshot(user, now)
	require.NoError(t, err)

	assert.Equal(t, int64(42), snap.UserID)
	assert.Equal(t, "alice@example.com", snap.Email)
	assert.Equal(t, "alice", snap.Username)
	assert.Equal(t, "Alice Doe", snap.DisplayName)
	assert.Equal(t, now, snap.IssuedAt)
}

func TestNewSnapshot_InvalidEmail(t *testing.T) {
	user := &User{
		ID:       42,
		Email:    "not-an-email",
		Username: "alice",
	}

	_, err := NewSnapshot(user, time.Now())
	assert.Error(t, err)
}

func TestNewSnapshot_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		user *User
	}{
		{"missing user id", &User{Email: "alice@example.com", Username: "alice"}},
		{"missing email", &User{ID: 42, Username: "alice"}},
		{"missing username", &User{ID: 42, Email: "alice@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.user, time.Now())
			assert.Error(t, err)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.NoError(t, ValidateEmail("a@x.com"))

	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("alice"))
	assert.Error(t, ValidateEmail("alice@"))
	assert.Error(t, ValidateEmail("@example.com"))
}

func TestUserEnabled(t *testing.T) {
	assert.True(t, (&User{Status: StatusEnabled}).Enabled())
	assert.False(t, (&User{Status: StatusDisabled}).Enabled())
	assert.False(t, (&User{Status: StatusNeedsApproval}).Enabled())
	assert.False(t, (&User{Status: StatusSoftDeleted}).Enabled())
	assert.False(t, (&User{}).Enabled())
}
