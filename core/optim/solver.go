package optim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/kilianp07/dcopf/core/factory"
)

// Solver solves a Problem. Implementations return a Solution only for an
// optimal solve; every other outcome is a *StatusError. A solve is a single
// blocking call and must return StatusTimeout once ctx is done.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, p *Problem) (*Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, p *Problem) (*Solution, error) { return f(ctx, p) }

var solverRegistry = factory.NewRegistry[Solver]()

// RegisterSolver adds a solver factory identified by name.
func RegisterSolver(name string, f factory.Factory[Solver]) error {
	return solverRegistry.Register(name, f)
}

// NewSolver creates the solver selected by cfg.Type.
func NewSolver(cfg factory.ModuleConfig) (Solver, error) {
	return solverRegistry.Create(cfg)
}

// SolverNames lists the registered solver types.
func SolverNames() []string { return solverRegistry.Names() }

// TimeoutError converts a context error into a StatusTimeout error.
func TimeoutError(err error) *StatusError {
	return NewStatusError(StatusTimeout, "%v", err)
}

// licensed guards a solver with a fixed number of concurrent sessions.
type licensed struct {
	next Solver
	sem  *semaphore.Weighted
}

// WithLicenses limits s to n concurrent solves. A session is acquired before
// each solve and released when it returns, whatever the outcome, or later
// when the solver detached background work (see Detach). Waiting for a
// session counts against the caller's deadline. n <= 0 returns s unchanged.
func WithLicenses(s Solver, n int64) Solver {
	if n <= 0 {
		return s
	}
	return &licensed{next: s, sem: semaphore.NewWeighted(n)}
}

func (l *licensed) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, TimeoutError(err)
		}
		return nil, err
	}
	sess := &session{release: func() { l.sem.Release(1) }}
	sol, err := l.next.Solve(context.WithValue(ctx, sessionKey{}, sess), p)
	if !sess.detached.Load() {
		sess.finish()
	}
	return sol, err
}

type sessionKey struct{}

// session is the license held by one solve.
type session struct {
	once     sync.Once
	release  func()
	detached atomic.Bool
}

func (s *session) finish() { s.once.Do(s.release) }

// Detach is called by a solver that returns on ctx while work it started is
// still running. The session guarding ctx, if any, stays acquired until the
// returned function is called, which the solver does once that work stops.
func Detach(ctx context.Context) func() {
	s, ok := ctx.Value(sessionKey{}).(*session)
	if !ok {
		return func() {}
	}
	s.detached.Store(true)
	return s.finish
}
