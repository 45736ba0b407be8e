package engine

import (
	"context"
	"encoding/json"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/budget"
)

// reload starts an asynchronous option load unless one is in flight.
// Until it completes, events keep using the previous snapshot.
func (e *Engine) reload(ctx context.Context) {
	if e.loading {
		return
	}
	e.loading = true

	e.background(func() {
		doc, err := e.store.Get(ctx)
		e.post(func(ctx context.Context) {
			e.applyOptions(doc, err)
		})
	})
}

func (e *Engine) applyOptions(doc []byte, err error) {
	e.loading = false
	if err != nil {
		e.log.Error().Err(err).Msg("failed to retrieve options")
		return
	}

	opts, warnings := blockset.Parse(doc, e.numSets)
	for _, w := range warnings {
		e.log.Warn().Err(w).Msg("block set disabled")
	}
	if opts == nil {
		e.log.Error().Msg("option document rejected, keeping previous options")
		return
	}

	now := e.now().Unix()
	counters := make(map[int]*budget.Counter, e.numSets)
	for n := 1; n <= e.numSets; n++ {
		counters[n] = mergeCounter(e.counters[n], opts.Counters[n], now)
	}
	e.opts = opts
	e.counters = counters
	e.log.Info().Int("sets", opts.NumSets()).Msg("options loaded")
}

// mergeCounter picks the counter to keep after a reload. The stored value
// wins unless it is an older copy of the live counter, in which case only
// a later lockdown is taken from it.
func mergeCounter(live, stored *budget.Counter, now int64) *budget.Counter {
	switch {
	case stored == nil && live == nil:
		return budget.New(now)
	case stored == nil:
		return live
	case live == nil || live.Created != stored.Created || stored.Total > live.Total:
		return stored.Clone()
	}
	merged := live.Clone()
	if stored.LockdownUntil > merged.LockdownUntil {
		merged.LockdownUntil = stored.LockdownUntil
	}
	return merged
}

// timeData returns the timedata{n} entries for every counter.
func (e *Engine) timeData() map[string]json.RawMessage {
	values := make(map[string]json.RawMessage, len(e.counters))
	for n, c := range e.counters {
		if c == nil {
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			e.log.Error().Err(err).Int("set", n).Msg("failed to encode time data")
			continue
		}
		values[blockset.Key("timedata", n)] = raw
	}
	return values
}

// save writes all counters in the background. A save requested while
// another is running is repeated once that one completes.
func (e *Engine) save(ctx context.Context) {
	if e.opts == nil {
		return
	}
	if e.saving {
		e.saveAgain = true
		return
	}
	values := e.timeData()
	if len(values) == 0 {
		return
	}
	e.saving = true

	e.background(func() {
		err := e.store.Set(ctx, values)
		e.post(func(ctx context.Context) {
			e.saving = false
			if err != nil {
				e.log.Error().Err(err).Msg("failed to save time data")
			}
			if e.saveAgain {
				e.saveAgain = false
				e.save(ctx)
			}
		})
	})
}
