// Package queue carries account events over RabbitMQ: a publisher used by
// the account flows and a background consumer that keeps an audit log.
package queue

import (
	"strconv"
	"time"

	"github.com/iliyamo/cafe-backend/internal/model"
)

// UserRegisteredQueue is the default queue for registration events.
const UserRegisteredQueue = "user.registered"

// UserRegisteredEvent is published once an account has been created. It
// carries enough for downstream consumers (welcome mail, audit, analytics)
// without querying the users table. No credentials are included.
type UserRegisteredEvent struct {
	UserID       uint64 `json:"user_id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	RegisteredAt string `json:"registered_at"`
}

// NewUserRegisteredEvent builds the event for u.
func NewUserRegisteredEvent(u *model.User) UserRegisteredEvent {
	at := u.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return UserRegisteredEvent{
		UserID:       u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		RegisteredAt: at.UTC().Format(time.RFC3339),
	}
}

// AuditLine renders the event as one human-readable log line.
func (e UserRegisteredEvent) AuditLine() string {
	return "[" + e.RegisteredAt + "] User registered | user_id=" + strconv.FormatUint(e.UserID, 10) +
		" | email=" + strconv.Quote(e.Email) +
		" | name=" + strconv.Quote(e.FirstName+" "+e.LastName) +
		" | role=" + e.Role + "\n"
}
