package lazyq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the evaluation state of a Query.
type State int32

// Evaluation states.
const (
	StateUnevaluated State = iota
	StateSent
	StateCached
)

func (s State) String() string {
	switch s {
	case StateUnevaluated:
		return "unevaluated"
	case StateSent:
		return "sent"
	case StateCached:
		return "cached"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// evaluation is the cached outcome of one round trip.
type evaluation struct {
	plan    *plan
	matches []Match
}

// cell holds the evaluation of one Query value. It is shared by nothing but
// the Query that created it, so a result set is fetched at most once.
type cell struct {
	mu    sync.Mutex
	state atomic.Int32
	ev    *evaluation
}

func cachedCell(ev *evaluation) *cell {
	c := &cell{ev: ev}
	c.state.Store(int32(StateCached))
	return c
}

func (c *cell) current() State {
	return State(c.state.Load())
}

// cached returns the evaluation if present without blocking on an in-flight
// round trip.
func (c *cell) cached() *evaluation {
	if c.current() != StateCached {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ev
}

// evaluate returns the cached evaluation or runs the round trip. Concurrent
// callers wait for the first one; failures are not cached.
func (q *Query[T]) evaluate(ctx context.Context) (*evaluation, error) {
	c := q.cell
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ev != nil {
		return c.ev, nil
	}

	p := q.compile()
	if p.empty {
		c.ev = &evaluation{plan: p}
		c.state.Store(int32(StateCached))
		return c.ev, nil
	}

	c.state.Store(int32(StateSent))
	start := time.Now()
	resp, err := q.be.search(ctx, p)
	q.obs.observeSearch(q.be.name(), p.index, start, len(resp.Matches), err)
	if err != nil {
		c.state.Store(int32(StateUnevaluated))
		return nil, q.searchError(p, err)
	}

	c.ev = &evaluation{plan: p, matches: resp.Matches}
	c.state.Store(int32(StateCached))
	return c.ev, nil
}

// searchError classifies a failed round trip.
func (q *Query[T]) searchError(p *plan, err error) error {
	log := q.obs.logger.With(
		zap.String("backend", q.be.name()),
		zap.String("index", p.index),
		zap.Error(err),
	)

	var se *StatusError
	switch {
	case errors.As(err, &se), errors.Is(err, ErrSearch), errors.Is(err, ErrInvalidArgument):
		log.Error("search failed")
		return err
	case isTimeout(err):
		log.Error("search timed out")
		return fmt.Errorf("%w: timed out: %w", ErrSearch, err)
	case isSocket(err):
		log.Error("search connection failed")
		return fmt.Errorf("%w: socket error: %w", ErrSearch, err)
	default:
		log.Error("search failed")
		return fmt.Errorf("%w: %w", ErrSearch, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isSocket(err error) bool {
	var oe *net.OpError
	return errors.As(err, &oe) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
