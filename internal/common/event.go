package common

import (
	"fmt"
	"time"
)

// EventKind tags the variant carried by an Event
type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventError
	EventClosed
)

// String returns the lowercase name used in logs, metrics labels and records
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one of Opened, Message, Error or Closed.
// Only the fields of the active variant are set.
type Event struct {
	Kind      EventKind
	SessionID string
	Time      time.Time

	// Message
	MessageType int
	Data        []byte

	// Error
	Err error

	// Closed
	Code   int
	Reason string
}

// AuthMessage is sent once right after the handshake
type AuthMessage struct {
	Event string `json:"event"`
	Token string `json:"token"`
}

// AuthEvent is the value of AuthMessage.Event
const AuthEvent = "authenticate"

// NewAuthMessage builds the authentication frame for token
func NewAuthMessage(token string) AuthMessage {
	return AuthMessage{Event: AuthEvent, Token: token}
}
