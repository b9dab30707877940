package domain

// OutcomeStatus classifies how one invocation ended.
type OutcomeStatus string

const (
	// StatusDelivered means the validator acknowledged the payload.
	StatusDelivered OutcomeStatus = "DELIVERED"
	// StatusRejected means the validator explicitly refused the payload.
	// Retrying a rejected payload cannot succeed.
	StatusRejected OutcomeStatus = "REJECTED"
	// StatusFailed means collection or delivery failed after exhausting
	// the local retry budget.
	StatusFailed OutcomeStatus = "FAILED"
	// StatusSkipped means a prior invocation was still in flight and this
	// one did not run.
	StatusSkipped OutcomeStatus = "SKIPPED"
)

// DeliveryOutcome summarizes one invocation for the external log consumer.
// It is never persisted beyond logging and metrics.
type DeliveryOutcome struct {
	Status       OutcomeStatus
	Attempts     int
	Attestations int
	LastError    error
}

// Err returns the terminal error for non-delivered outcomes, nil otherwise.
func (o *DeliveryOutcome) Err() error {
	if o.Status == StatusDelivered || o.Status == StatusSkipped {
		return nil
	}
	return o.LastError
}
