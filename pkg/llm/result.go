package llm

// Result is the outcome of one completion attempt. Exactly one variant
// comes back per call; callers switch on the concrete type.
type Result interface {
	isResult()
}

// Success carries non-empty generated text, already trimmed.
type Success struct {
	Text string
}

// Empty means the upstream answered 2xx but produced no usable text.
type Empty struct{}

// UpstreamError is a non-2xx response. Body is kept for diagnostics and
// must never reach the end user verbatim.
type UpstreamError struct {
	Status int
	Body   string
}

// TransportFailure covers network errors, timeouts, parse failures and
// an open circuit breaker.
type TransportFailure struct {
	Err error
}

func (Success) isResult()          {}
func (Empty) isResult()            {}
func (UpstreamError) isResult()    {}
func (TransportFailure) isResult() {}
