package identity

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status represents a host platform account status.
type Status string

const (
	StatusEnabled       Status = "enabled"
	StatusDisabled      Status = "disabled"
	StatusNeedsApproval Status = "needs_approval"
	StatusSoftDeleted   Status = "softdeleted"
)

// User is a host platform account as returned by the identity resolver.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Status      Status `json:"status"`
}

// Enabled reports whether the account may log in. Any status other than
// enabled denies login.
func (u *User) Enabled() bool {
	return u.Status == StatusEnabled
}

// Snapshot is the identity data frozen at token issuance time. Display fields
// are trusted as-is at validation time; enablement is always re-checked
// against a fresh resolver lookup.
type Snapshot struct {
	UserID      int64     `json:"user_id" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Username    string    `json:"username" validate:"required"`
	DisplayName string    `json:"displayName"`
	IssuedAt    time.Time `json:"issued_at"`
}

var validate = validator.New()

// NewSnapshot captures a user's identity for token issuance. Required fields
// and email format are checked at construction; a snapshot that fails
// validation is never stored.
func NewSnapshot(user *User, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		UserID:      user.ID,
		Email:       user.Email,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IssuedAt:    now,
	}
	if err := validate.Struct(snap); err != nil {
		return nil, fmt.Errorf("invalid identity snapshot: %w", err)
	}
	return snap, nil
}

// ValidateEmail performs a syntactic email-format check.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
