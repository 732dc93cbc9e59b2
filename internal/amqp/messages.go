package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"monthbook/internal/core"
)

// ChangeKind names what happened to a month or one of its notes.
type ChangeKind string

const (
	MonthCreated ChangeKind = "month.created"
	MonthUpdated ChangeKind = "month.updated"
	MonthDeleted ChangeKind = "month.deleted"
	NoteCreated  ChangeKind = "note.created"
	NoteUpdated  ChangeKind = "note.updated"
	NoteDeleted  ChangeKind = "note.deleted"
)

// ChangeMessage is a lightweight notification that a month changed.
// Consumers fetch the current state from the database; Period is carried so a
// deleted month can still be located downstream.
type ChangeMessage struct {
	Kind      ChangeKind `json:"kind"`
	MonthID   string     `json:"month_id"`
	NoteID    string     `json:"note_id,omitempty"`
	OwnerID   string     `json:"owner_id"`
	Period    string     `json:"period"`
	// PreviousPeriod is set when an update moved the month to a new period.
	PreviousPeriod string    `json:"previous_period,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewChangeMessage describes a change to m, or to note noteID within m.
func NewChangeMessage(kind ChangeKind, m core.Month, noteID string) *ChangeMessage {
	return &ChangeMessage{
		Kind:      kind,
		MonthID:   m.ID,
		NoteID:    noteID,
		OwnerID:   m.OwnerID,
		Period:    m.Label(),
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) Validate() error {
	switch m.Kind {
	case MonthCreated, MonthUpdated, MonthDeleted:
	case NoteCreated, NoteUpdated, NoteDeleted:
		if m.NoteID == "" {
			return errors.New("note change without note id")
		}
	default:
		return errors.New("unknown change kind: " + string(m.Kind))
	}
	if m.MonthID == "" {
		return errors.New("change without month id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
