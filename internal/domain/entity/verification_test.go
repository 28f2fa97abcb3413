package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVerificationStatus(t *testing.T) {
	statuses := []VerificationStatus{VerificationNone, VerificationPending, VerificationVerified, VerificationRejected}
	events := []VerificationEvent{EventApprove, EventReject, EventReapply, EventRedeemCode}

	allowed := map[VerificationStatus]map[VerificationEvent]VerificationStatus{
		VerificationPending: {
			EventApprove:    VerificationVerified,
			EventRedeemCode: VerificationVerified,
			EventReject:     VerificationRejected,
		},
		VerificationRejected: {
			EventReapply: VerificationPending,
		},
	}

	for _, from := range statuses {
		for _, event := range events {
			next, err := NextVerificationStatus(from, event)
			want, ok := allowed[from][event]
			if ok {
				require.NoError(t, err, "%s --%s-->", from, event)
				assert.Equal(t, want, next)
				continue
			}

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid, "%s --%s--> should be refused", from, event)
			assert.Equal(t, from, next)
			assert.Equal(t, from, invalid.From)
			assert.Equal(t, event, invalid.Event)
		}
	}
}

func TestInitialVerificationStatus(t *testing.T) {
	assert.Equal(t, VerificationVerified, InitialVerificationStatus(RolePatient))
	assert.Equal(t, VerificationPending, InitialVerificationStatus(RoleDoctor))
	assert.Equal(t, VerificationNone, InitialVerificationStatus(RoleAdmin))
}

func TestNormalizeDoctorName(t *testing.T) {
	tests := map[string]string{
		"Dr. Sarah Chen":    "sarah chen",
		"  dr   SARAH chen": "sarah chen",
		"DR Sarah Chen":     "sarah chen",
		"Dr.":               "dr.",
		"Sarah Chen":        "sarah chen",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDoctorName(in), in)
	}
}

func TestChangeFilterMatches(t *testing.T) {
	doctorID := uuid.New()
	event := ChangeEvent{
		Table: TableAppointments,
		Keys:  map[string]uuid.UUID{FieldDoctorID: doctorID, FieldUserID: uuid.New()},
	}

	assert.True(t, ChangeFilter{Table: TableAppointments, Field: FieldDoctorID, Value: doctorID}.Matches(event))
	assert.False(t, ChangeFilter{Table: TableAppointments, Field: FieldDoctorID, Value: uuid.New()}.Matches(event))
	assert.False(t, ChangeFilter{Table: TableProfiles, Field: FieldDoctorID, Value: doctorID}.Matches(event))
	assert.False(t, ChangeFilter{Table: TableAppointments, Field: FieldID, Value: doctorID}.Matches(event))
}
