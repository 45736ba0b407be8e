package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/budget"
)

func TestUnblockTime_AlwaysBlocking(t *testing.T) {
	s := exampleSet(t, withSchedule("0000-2400"))
	_, ok := UnblockTime(&s, budget.New(0), at(10, 0))
	assert.False(t, ok)

	s.Conjunction = true
	_, ok = UnblockTime(&s, budget.New(0), at(10, 0))
	assert.True(t, ok, "AND-mode without budget ends with the projected window")
}

func TestUnblockTime_MissingTimeData(t *testing.T) {
	s := exampleSet(t, withSchedule("09:00-17:00"))
	_, ok := UnblockTime(&s, nil, at(10, 0))
	assert.False(t, ok)
}

func TestUnblockTime_ScheduleOnly(t *testing.T) {
	s := exampleSet(t, withSchedule("09:00-17:00"))

	end, ok := UnblockTime(&s, budget.New(0), at(10, 0))
	require.True(t, ok)
	assert.Equal(t, at(17, 0), end)

	_, ok = UnblockTime(&s, budget.New(0), at(20, 0))
	assert.False(t, ok, "not blocked")
}

func TestUnblockTime_AcrossMidnight(t *testing.T) {
	s := exampleSet(t, withSchedule("00:00-06:00,22:00-24:00"))
	end, ok := UnblockTime(&s, budget.New(0), at(23, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 4, 6, 0, 0, 0, time.UTC), end)
}

func TestUnblockTime_BudgetOnly(t *testing.T) {
	s := exampleSet(t, withBudget(30, 3600))
	c := &budget.Counter{PeriodStart: at(10, 0).Unix(), PeriodSpent: 1800}
	end, ok := UnblockTime(&s, c, at(10, 20))
	require.True(t, ok)
	assert.Equal(t, at(11, 0), end)

	c.PeriodSpent = 0
	_, ok = UnblockTime(&s, c, at(10, 20))
	assert.False(t, ok, "budget left, not blocking")
}

func TestUnblockTime_ConjunctionBoth(t *testing.T) {
	s := exampleSet(t, combine(
		withSchedule("09:00-17:00"),
		withBudget(60, 86400),
		func(s *blockset.Set) { s.Conjunction = true },
	))
	end, ok := UnblockTime(&s, budget.New(0), at(10, 0))
	require.True(t, ok)
	assert.Equal(t, at(17, 0), end, "window ends before the day's period")

	s.BudgetPeriod = 3600
	end, ok = UnblockTime(&s, budget.New(0), at(10, 15))
	require.True(t, ok)
	assert.Equal(t, at(11, 0), end, "period ends before the window")

	_, ok = UnblockTime(&s, budget.New(0), at(18, 0))
	assert.False(t, ok)
}

func TestUnblockTime_DisjunctionBoth(t *testing.T) {
	s := exampleSet(t, combine(withSchedule("09:00-17:00"), withBudget(30, 3600)))

	t.Run("Exhausted budget resets inside a window", func(t *testing.T) {
		c := &budget.Counter{PeriodStart: at(8, 0).Unix(), PeriodSpent: 1800}
		end, ok := UnblockTime(&s, c, at(8, 30))
		require.True(t, ok)
		assert.Equal(t, at(17, 0), end)
	})

	t.Run("Exhausted budget resets outside any window", func(t *testing.T) {
		c := &budget.Counter{PeriodStart: at(7, 0).Unix(), PeriodSpent: 1800}
		end, ok := UnblockTime(&s, c, at(7, 40))
		require.True(t, ok)
		assert.Equal(t, at(8, 0), end)
	})

	t.Run("Budget left inside a window", func(t *testing.T) {
		c := &budget.Counter{PeriodStart: at(10, 0).Unix(), PeriodSpent: 60}
		end, ok := UnblockTime(&s, c, at(10, 30))
		require.True(t, ok)
		assert.Equal(t, at(17, 0), end)
	})

	t.Run("Nothing blocking", func(t *testing.T) {
		_, ok := UnblockTime(&s, budget.New(0), at(20, 0))
		assert.False(t, ok)
	})
}

func TestUnblockTimeFor(t *testing.T) {
	opts, warnings := blockset.Parse([]byte(`{
		"blockRE1": "example",
		"times1": "0900-1700",
		"days1": [true, true, true, true, true, true, true],
		"timedata1": [0, 0, 0, 0, 0]
	}`), 2)
	require.Empty(t, warnings)

	end, ok := UnblockTimeFor(opts, opts.Counters, 1, at(10, 0))
	require.True(t, ok)
	assert.Equal(t, at(17, 0), end)

	_, ok = UnblockTimeFor(opts, opts.Counters, 0, at(10, 0))
	assert.False(t, ok)
	_, ok = UnblockTimeFor(opts, opts.Counters, 3, at(10, 0))
	assert.False(t, ok)
}
