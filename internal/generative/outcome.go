package generative

// Reason explains why generated text is unavailable
type Reason string

const (
	ReasonDisabled      Reason = "disabled"
	ReasonCircuitOpen   Reason = "circuit_open"
	ReasonTimeout       Reason = "timeout"
	ReasonCanceled      Reason = "canceled"
	ReasonUpstreamError Reason = "upstream_error"
	ReasonNonSuccess    Reason = "non_success"
	ReasonEmpty         Reason = "empty"
	ReasonMalformed     Reason = "malformed"
)

// Outcome is the result of one attempt through the fallback policy. It is
// either Ok or Unavailable.
type Outcome interface {
	outcome()
}

// Ok carries validated generated content
type Ok struct {
	Content string
}

// Unavailable means the caller must use its rule-based text
type Unavailable struct {
	Reason Reason
	Err    error
}

func (Ok) outcome()          {}
func (Unavailable) outcome() {}
