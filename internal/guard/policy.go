package guard

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Policy decides what a guard does when the remote check itself fails.
type Policy int

const (
	// FailOpen lets the operation proceed as if the check had passed.
	FailOpen Policy = iota + 1
	// FailClosed rejects the operation.
	FailClosed
)

func (p Policy) String() string {
	switch p {
	case FailOpen:
		return "fail_open"
	case FailClosed:
		return "fail_closed"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_checks_total",
		Help: "Consistency guard checks by guard and outcome",
	}, []string{"guard", "outcome"})
	remoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_remote_failures_total",
		Help: "Remote check failures by guard and the policy applied",
	}, []string{"guard", "policy"})
)

// proceed is the only place a failed remote check is turned into a decision.
// Anything other than FailOpen is treated as FailClosed.
func (p Policy) proceed(guard string) bool {
	remoteFailures.WithLabelValues(guard, p.String()).Inc()
	return p == FailOpen
}
