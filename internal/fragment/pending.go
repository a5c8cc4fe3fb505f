package fragment

import "context"

// Outcome describes what a load did to its target.
type Outcome int

const (
	// Cleared means no identifier was given and the target was emptied.
	Cleared Outcome = iota + 1
	// Replaced means the fragment body was written to the target.
	Replaced
	// Unchanged means the request failed and the target kept its content.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Cleared:
		return "cleared"
	case Replaced:
		return "replaced"
	case Unchanged:
		return "unchanged"
	default:
		return "pending"
	}
}

// Pending is the result of a single Load call.
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(o Outcome) {
	p.outcome = o
	close(p.done)
}

// Done is closed once the target has been written or the load has failed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the load finishes or ctx is done. The error is only ever
// ctx.Err(); load failures are reported as Unchanged.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Outcome returns the result of a finished load, or zero while it is still
// in flight.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return 0
	}
}
