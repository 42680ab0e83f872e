package models

// OutcomeKind classifies the result of one push exchange.
type OutcomeKind string

const (
	OutcomeOK                    OutcomeKind = "ok"
	OutcomeTimeout               OutcomeKind = "timeout"
	OutcomeUnregisteredRecipient OutcomeKind = "unregistered"
	OutcomeProtocolError         OutcomeKind = "protocol_error"
)

// SendOutcome is the classified result of a completed or timed-out exchange.
// Connection and signing failures are reported as errors, not outcomes.
type SendOutcome struct {
	Kind OutcomeKind

	// Body is the gateway response body for a ProtocolError or
	// UnregisteredRecipient outcome.
	Body string
}

// Success reports whether the gateway accepted the notification.
func (o SendOutcome) Success() bool {
	return o.Kind == OutcomeOK
}
