// Package blockset holds the parsed, read-only block set configuration that
// the engine evaluates pages against.
package blockset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/SoarinFerret/TabWarden/internal/budget"
	"github.com/SoarinFerret/TabWarden/internal/schedule"
)

const (
	DefaultNumSets  = 6
	DefaultBlockURL = "blocked.html?$S&$U"
)

// Weekdays is the default set of active days (Monday to Friday).
var Weekdays = [7]bool{false, true, true, true, true, true, false}

var (
	extensionsPageRE = regexp.MustCompile(`(?i)^about:addons`)
	settingsPageRE   = regexp.MustCompile(`(?i)^about:(config|support)`)
)

// Set is one numbered block set.
type Set struct {
	Number int
	Name   string

	BlockPattern   string
	AllowPattern   string
	KeywordPattern string

	Schedule      string
	Windows       []schedule.Window
	BudgetMinutes float64
	BudgetPeriod  int64
	HasBudget     bool

	// Conjunction selects AND-mode: schedule and budget must both trigger.
	Conjunction bool
	ActiveDays  [7]bool
	BlockURL    string
	ActiveBlock bool
	CountFocus  bool

	PreventExtensionsPage bool
	PreventSettingsPage   bool

	block *regexp.Regexp
	allow *regexp.Regexp
}

// Enabled reports whether the set has a usable block pattern.
func (s *Set) Enabled() bool {
	return s.block != nil
}

// HasSchedule reports whether time-of-day windows restrict the set.
func (s *Set) HasSchedule() bool {
	return len(s.Windows) > 0
}

// BudgetSeconds returns the configured budget in seconds.
func (s *Set) BudgetSeconds() float64 {
	return s.BudgetMinutes * 60
}

// ActiveOn reports whether the set applies on the given weekday (0 = Sunday).
func (s *Set) ActiveOn(weekday int) bool {
	return s.ActiveDays[weekday%7]
}

// AlwaysBlocks reports whether the set blocks around the clock every day in
// OR-mode, so it never unblocks.
func (s *Set) AlwaysBlocks() bool {
	if s.Conjunction || !schedule.AllDay(s.Windows) {
		return false
	}
	for _, d := range s.ActiveDays {
		if !d {
			return false
		}
	}
	return true
}

// Matches reports whether pageURL matches the block pattern and not the
// allow pattern.
func (s *Set) Matches(pageURL string) bool {
	if s.block == nil || !s.block.MatchString(pageURL) {
		return false
	}
	return s.allow == nil || !s.allow.MatchString(pageURL)
}

// MatchesSpecialPage reports whether pageURL is a browser page the set is
// configured to guard.
func (s *Set) MatchesSpecialPage(pageURL string) bool {
	return (s.PreventExtensionsPage && extensionsPageRE.MatchString(pageURL)) ||
		(s.PreventSettingsPage && settingsPageRE.MatchString(pageURL))
}

// RedirectURL fills the set's block page template for pageURL.
func (s *Set) RedirectURL(pageURL string) string {
	u := strings.ReplaceAll(s.BlockURL, "$S", strconv.Itoa(s.Number))
	return strings.ReplaceAll(u, "$U", pageURL)
}

// Options is an immutable snapshot of all block sets plus the time data
// loaded alongside them.
type Options struct {
	Sets     []Set
	Counters map[int]*budget.Counter
}

// Set returns block set n (1-based).
func (o *Options) Set(n int) (*Set, bool) {
	if o == nil || n < 1 || n > len(o.Sets) {
		return nil, false
	}
	return &o.Sets[n-1], true
}

// NumSets returns the number of configured sets.
func (o *Options) NumSets() int {
	if o == nil {
		return 0
	}
	return len(o.Sets)
}

// Parse reads numSets block sets from the flat option document. Sets whose
// patterns fail to compile are disabled and reported in the returned
// warnings; Parse itself only fails on a document that is not a JSON object.
func Parse(doc []byte, numSets int) (*Options, []error) {
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, []error{fmt.Errorf("option document is not an object")}
	}

	opts := &Options{
		Sets:     make([]Set, numSets),
		Counters: make(map[int]*budget.Counter, numSets),
	}
	var warnings []error
	for n := 1; n <= numSets; n++ {
		set, err := parseSet(root, n)
		if err != nil {
			warnings = append(warnings, err)
		}
		opts.Sets[n-1] = set
		if c := budget.Decode(root.Get(Key("timedata", n))); c != nil {
			opts.Counters[n] = c
		}
	}
	return opts, warnings
}

// Key builds the option key for a set, e.g. Key("blockRE", 2) = "blockRE2".
func Key(name string, n int) string {
	return name + strconv.Itoa(n)
}

func parseSet(root gjson.Result, n int) (Set, error) {
	get := func(name string) gjson.Result { return root.Get(Key(name, n)) }

	s := Set{
		Number:                n,
		Name:                  get("setName").String(),
		BlockPattern:          get("blockRE").String(),
		AllowPattern:          get("allowRE").String(),
		KeywordPattern:        get("keywordRE").String(),
		Schedule:              get("times").String(),
		Conjunction:           get("conjMode").Bool(),
		ActiveDays:            Weekdays,
		BlockURL:              DefaultBlockURL,
		ActiveBlock:           get("activeBlock").Bool(),
		CountFocus:            true,
		PreventExtensionsPage: get("prevAddons").Bool(),
		PreventSettingsPage:   get("prevConfig").Bool(),
	}
	s.Windows = schedule.Parse(s.Schedule)

	if v := get("blockURL"); v.Exists() && v.String() != "" {
		s.BlockURL = v.String()
	}
	if v := get("countFocus"); v.Exists() {
		s.CountFocus = v.Bool()
	}
	if v := get("days"); v.IsArray() {
		for i, d := range v.Array() {
			if i >= 7 {
				break
			}
			s.ActiveDays[i] = d.Bool()
		}
	}

	mins := get("limitMins")
	period := get("limitPeriod")
	if mins.String() != "" && period.String() != "" {
		s.BudgetMinutes = mins.Float()
		s.BudgetPeriod = period.Int()
		s.HasBudget = s.BudgetPeriod > 0
	}

	if err := s.Compile(); err != nil {
		return s, fmt.Errorf("set %d: %w", n, err)
	}
	return s, nil
}

// Compile builds the set's matchers from its patterns. An empty block
// pattern leaves the set disabled. On error the set stays disabled.
func (s *Set) Compile() error {
	s.block, s.allow = nil, nil
	if s.BlockPattern == "" {
		return nil
	}
	block, err := regexp.Compile(s.BlockPattern)
	if err != nil {
		return fmt.Errorf("block pattern: %w", err)
	}
	var allow *regexp.Regexp
	if s.AllowPattern != "" {
		allow, err = regexp.Compile(s.AllowPattern)
		if err != nil {
			return fmt.Errorf("allow pattern: %w", err)
		}
	}
	s.block, s.allow = block, allow
	return nil
}
