package probe

import "context"

// Outcome classifies a single HTTP attempt.
type Outcome int

const (
	// OutcomeResponded means any HTTP response arrived, whatever its status.
	OutcomeResponded Outcome = iota
	// OutcomeConnection is a connection-level failure: refused, reset,
	// DNS failure, TLS failure. It triggers the plain-HTTP fallback.
	OutcomeConnection
	// OutcomeTimeout is a read/response timeout. No fallback follows it.
	OutcomeTimeout
	// OutcomeNetworkDown means the local network has no route at all.
	OutcomeNetworkDown
	// OutcomeResolverDown means name resolution failed temporarily (SERVFAIL,
	// resolver timeout), as opposed to the name not existing.
	OutcomeResolverDown
	OutcomeOther
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResponded:
		return "responded"
	case OutcomeConnection:
		return "connection_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNetworkDown:
		return "network_down"
	case OutcomeResolverDown:
		return "resolver_down"
	default:
		return "other"
	}
}

// CheckResult holds the outcome of a single probe attempt.
// StatusCode is 0 when no response was received.
type CheckResult struct {
	Outcome    Outcome
	StatusCode int
	LatencyMS  float64
	Message    string
}

// unreachable reports whether o says more about the local network or resolver
// than about the domain.
func (o Outcome) unreachable() bool {
	return o == OutcomeNetworkDown || o == OutcomeResolverDown
}

// Checker performs one attempt against a full URL.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}

// Resolver returns one IPv4 address for host.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}
