package entity

import "fmt"

// VerificationStatus tracks where a doctor account is in the approval flow.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "none"
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// VerificationEvent triggers a transition of the verification state machine.
type VerificationEvent string

const (
	EventApprove    VerificationEvent = "approve"
	EventReject     VerificationEvent = "reject"
	EventReapply    VerificationEvent = "reapply"
	EventRedeemCode VerificationEvent = "redeem_code"
)

var verificationTransitions = map[VerificationStatus]map[VerificationEvent]VerificationStatus{
	VerificationPending: {
		EventApprove:    VerificationVerified,
		EventRedeemCode: VerificationVerified,
		EventReject:     VerificationRejected,
	},
	VerificationRejected: {
		EventReapply: VerificationPending,
	},
}

// InvalidTransitionError is returned when an event is not allowed from the
// current state.
type InvalidTransitionError struct {
	From  VerificationStatus
	Event VerificationEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a doctor in %q state", e.Event, e.From)
}

// NextVerificationStatus applies event to from. none and verified are terminal.
func NextVerificationStatus(from VerificationStatus, event VerificationEvent) (VerificationStatus, error) {
	if next, ok := verificationTransitions[from][event]; ok {
		return next, nil
	}
	return from, &InvalidTransitionError{From: from, Event: event}
}

func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationNone, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}
