package entity

import (
	"time"

	"github.com/google/uuid"
)

// Tables that publish change events
const (
	TableProfiles      = "profiles"
	TableDoctors       = "doctors"
	TableAppointments  = "appointments"
	TableFamilyMembers = "family_members"
)

// Filter fields a change subscription can be scoped to
const (
	FieldDoctorID = "doctor_id"
	FieldUserID   = "user_id"
	FieldID       = "id"
)

// ChangeOp is the kind of row change.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// ChangeEvent describes a row change. Keys maps filter fields to the values
// the row carried, so one event can match several subscriptions.
type ChangeEvent struct {
	Table      string               `json:"table"`
	Op         ChangeOp             `json:"op"`
	RecordID   uuid.UUID            `json:"record_id"`
	Keys       map[string]uuid.UUID `json:"keys"`
	Summary    string               `json:"summary,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// ChangeFilter scopes a subscription to one table and one equality filter.
type ChangeFilter struct {
	Table string
	Field string
	Value uuid.UUID
}

// Matches reports whether e falls under f.
func (f ChangeFilter) Matches(e ChangeEvent) bool {
	if f.Table != e.Table {
		return false
	}
	v, ok := e.Keys[f.Field]
	return ok && v == f.Value
}

// Notification is a human readable message for the presentation layer.
type Notification struct {
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
}
