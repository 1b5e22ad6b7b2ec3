package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit entry.
type EventType string

const (
	EventAuthentication EventType = "AUTHENTICATION"
	EventPayment        EventType = "PAYMENT"
	EventSecurityAlert  EventType = "SECURITY_ALERT"
	EventAdminAction    EventType = "ADMIN_ACTION"
	EventSystem         EventType = "SYSTEM_EVENT"
)

// ParseEventType normalizes an event type filter. Empty input returns "" and true.
func ParseEventType(value string) (EventType, bool) {
	switch EventType(value) {
	case "":
		return "", true
	case EventAuthentication, EventPayment, EventSecurityAlert, EventAdminAction, EventSystem:
		return EventType(value), true
	default:
		return "", false
	}
}

// Event represents an append-only audit entry.
type Event struct {
	ID            string    `json:"id"`
	EventType     EventType `json:"eventType"`
	UserID        string    `json:"userId,omitempty"`
	Action        string    `json:"action"`
	Details       string    `json:"details,omitempty"`
	IP            string    `json:"ipAddress,omitempty"`
	PayloadDigest string    `json:"payloadDigest,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Sink writes audit events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Lister reads audit events back, newest first. An empty eventType lists all.
type Lister interface {
	List(ctx context.Context, eventType EventType, limit int) ([]Event, error)
}

// ErrEmptyAction is returned for events without an action.
var ErrEmptyAction = errors.New("audit: empty action")

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// Digest computes a SHA256 hex digest of event details.
func Digest(details string) string {
	if details == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(details))
	return hex.EncodeToString(sum[:])
}

// prepare fills generated fields.
func prepare(event *Event, now time.Time) error {
	if event.Action == "" {
		return ErrEmptyAction
	}
	if event.ID == "" {
		event.ID = NewID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now.UTC()
	}
	if event.PayloadDigest == "" {
		event.PayloadDigest = Digest(event.Details)
	}
	return nil
}
