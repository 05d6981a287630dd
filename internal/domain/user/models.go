package user

import (
	"errors"
	"time"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Domain errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid link state transition")
	ErrInconsistentLink  = errors.New("access token and item id must be set together")
)

// LinkState is the explicit state of the user's institution link.
type LinkState string

const (
	LinkStateNone    LinkState = "no_link"
	LinkStatePending LinkState = "link_pending"
	LinkStateLinked  LinkState = "linked"
)

// Valid reports whether s is a known link state.
func (s LinkState) Valid() bool {
	switch s {
	case LinkStateNone, LinkStatePending, LinkStateLinked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// no_link -> link_pending -> linked, any state -> no_link via unlink, and
// linked -> linked (relink overwrites, last-write-wins).
func (s LinkState) CanTransitionTo(next LinkState) bool {
	switch s {
	case LinkStateNone:
		return next == LinkStatePending
	case LinkStatePending:
		return next == LinkStateLinked || next == LinkStateNone || next == LinkStatePending
	case LinkStateLinked:
		return next == LinkStateLinked || next == LinkStateNone || next == LinkStatePending
	}
	return false
}

// User represents an application user. AccessToken is always stored sealed;
// the plaintext token never leaves the sync boundary.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	AccessToken  *string    `json:"-"` // sealed by the token vault
	ItemID       *string    `json:"-"`
	LinkState    LinkState  `json:"linkState"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasLink reports whether a sealed access token is stored.
func (u *User) HasLink() bool {
	return u.AccessToken != nil && *u.AccessToken != ""
}

// CheckLinkInvariant verifies that the sealed token and item id are either
// both present or both absent.
func (u *User) CheckLinkInvariant() error {
	hasToken := u.AccessToken != nil && *u.AccessToken != ""
	hasItem := u.ItemID != nil && *u.ItemID != ""
	if hasToken != hasItem {
		return ErrInconsistentLink
	}
	return nil
}

// CreateParams contains parameters for registering a user.
type CreateParams struct {
	Email        string
	PasswordHash string
	Role         string
}

// Validate validates the create parameters.
func (p CreateParams) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if p.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if p.Role != "" && p.Role != RoleUser && p.Role != RoleAdmin {
		return errors.New("role must be user or admin")
	}
	return nil
}
