package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/browser"
	"github.com/SoarinFerret/TabWarden/internal/budget"
	"github.com/SoarinFerret/TabWarden/internal/config"
	"github.com/SoarinFerret/TabWarden/internal/state"
	"github.com/SoarinFerret/TabWarden/internal/store"
)

// ErrStopped is returned by Do once Run has returned.
var ErrStopped = errors.New("engine stopped")

// Engine tracks tabs, enforces block sets and accounts time. All of its
// state is owned by the Run goroutine; everything else reaches it via Do.
type Engine struct {
	log     zerolog.Logger
	store   store.Store
	browser browser.Browser
	tabs    *state.Manager
	numSets int
	tick    time.Duration
	now     func() time.Time

	events chan func(ctx context.Context)
	quit   chan struct{}
	// io tracks background option loads and saves.
	io sync.WaitGroup

	// Owned by the Run goroutine.
	opts          *blockset.Options
	counters      map[int]*budget.Counter
	focusedWindow int
	loading       bool
	saving        bool
	saveAgain     bool
	sleeping      bool
	locked        bool
	startedAt     time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates an engine reading options from st and acting on br.
func NewEngine(cfg *config.Config, st store.Store, br browser.Browser, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		log:           logger.With().Str("component", "engine").Logger(),
		store:         st,
		browser:       br,
		tabs:          state.NewManager(),
		numSets:       cfg.NumSets,
		tick:          cfg.Tick.Duration,
		now:           time.Now,
		events:        make(chan func(ctx context.Context), 64),
		quit:          make(chan struct{}),
		counters:      make(map[int]*budget.Counter),
		focusedWindow: browser.WindowNone,
	}
	if e.numSets <= 0 {
		e.numSets = blockset.DefaultNumSets
	}
	if e.tick <= 0 {
		e.tick = time.Second
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run loads the options and then serves events and ticks until ctx is done.
// On shutdown every running clock is stopped and the counters are written.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.startedAt = e.now()
	e.log.Info().Dur("tick", e.tick).Int("sets", e.numSets).Msg("engine started")
	e.reload(ctx)

	for {
		select {
		case <-ctx.Done():
			close(e.quit)
			e.io.Wait()
			e.shutdown()
			e.log.Info().Msg("engine shutting down")
			return nil
		case fn := <-e.events:
			fn(ctx)
		case <-ticker.C:
			e.handleAlarm(ctx)
		}
	}
}

// Do runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) Do(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	wrapped := func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}

	select {
	case e.events <- wrapped:
	case <-e.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-e.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// background runs fn in a goroutine that Run waits for on shutdown.
func (e *Engine) background(fn func()) {
	e.io.Add(1)
	go func() {
		defer e.io.Done()
		fn()
	}()
}

// post queues fn without waiting. Used by background I/O to hand results
// back to the loop.
func (e *Engine) post(fn func(ctx context.Context)) {
	select {
	case e.events <- fn:
	case <-e.quit:
	}
}

func (e *Engine) paused() bool {
	return e.sleeping || e.locked
}

func (e *Engine) shutdown() {
	now := e.now()
	e.tabs.StopAll(now, e)
	if e.opts == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Set(ctx, e.timeData()); err != nil {
		e.log.Error().Err(err).Msg("failed to save time data on shutdown")
	}
}
