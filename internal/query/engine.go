package query

import (
	"errors"
	"sort"
	"strings"
	"time"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
	"staytrack/internal/summary"
)

// ErrKeywordTooShort rejects single-character searches.
var ErrKeywordTooShort = errors.New("search keyword must have at least 2 characters")

const (
	DefaultPageSize  = 200
	DefaultMaxBatch  = 1000
	MaxSearchResults = 100
	minKeywordLen    = 2
)

// Options tune paging limits.
type Options struct {
	PageSize int
	MaxBatch int
}

// Engine answers queries over one materialised snapshot.
type Engine struct {
	people []summary.PersonSummary
	index  map[string]summary.PersonSummary
	asOf   time.Time
	opts   Options
}

// NewEngine wraps a snapshot computed as of asOf.
func NewEngine(people []summary.PersonSummary, asOf time.Time, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	return &Engine{
		people: people,
		index:  summary.Index(people),
		asOf:   entry.Day(asOf),
		opts:   opts,
	}
}

// AsOf is the day the snapshot was computed for.
func (e *Engine) AsOf() time.Time { return e.asOf }

// Len is the number of persons in the snapshot.
func (e *Engine) Len() int { return len(e.people) }

// Page is one slice of an ordered result set.
type Page struct {
	Results    []summary.PersonSummary `json:"results"`
	TotalCount int                     `json:"total_count"`
	HasMore    bool                    `json:"has_more"`
	Offset     int                     `json:"offset"`
	Limit      int                     `json:"limit"`
	NotFound   []string                `json:"not_found,omitempty"`
}

func paginate(all []summary.PersonSummary, limit, offset int) Page {
	p := Page{TotalCount: len(all), Offset: offset, Limit: limit, Results: []summary.PersonSummary{}}
	if offset >= len(all) {
		return p
	}
	end := len(all)
	if limit < end-offset {
		end = offset + limit
	}
	p.Results = all[offset:end]
	p.HasMore = end < len(all)
	return p
}

// byArrivalDesc orders by arrival descending, then passport.
func byArrivalDesc(people []summary.PersonSummary) {
	sort.SliceStable(people, func(i, j int) bool {
		if !people[i].ArrivalDate.Equal(people[j].ArrivalDate) {
			return people[i].ArrivalDate.After(people[j].ArrivalDate)
		}
		return people[i].Passport < people[j].Passport
	})
}

// Select returns every match, unpaginated, in list order.
func (e *Engine) Select(f Filter) []summary.PersonSummary {
	var out []summary.PersonSummary
	for _, p := range e.people {
		if f.Match(p, e.asOf) {
			out = append(out, p)
		}
	}
	byArrivalDesc(out)
	return out
}

// List filters, orders by arrival descending and paginates.
func (e *Engine) List(f Filter) (Page, error) {
	if err := f.Validate(); err != nil {
		return Page{}, err
	}
	limit := f.Limit
	if limit == 0 {
		limit = e.opts.PageSize
	}
	return paginate(e.Select(f), limit, f.Offset), nil
}

// Get looks up one passport in any spelling.
func (e *Engine) Get(passport string) (summary.PersonSummary, bool) {
	p, ok := e.index[entry.NormalizePassport(passport)]
	return p, ok
}

// Search fuzzy-matches a keyword against passports and names.
func (e *Engine) Search(keyword string) ([]summary.PersonSummary, error) {
	keyword = strings.TrimSpace(keyword)
	if len([]rune(keyword)) < minKeywordLen {
		return nil, ErrKeywordTooShort
	}
	var out []summary.PersonSummary
	for _, p := range e.people {
		if MatchText(p, keyword) {
			out = append(out, p)
		}
	}
	byArrivalDesc(out)
	if len(out) > MaxSearchResults {
		out = out[:MaxSearchResults]
	}
	return out, nil
}

// Batch looks up a pasted passport list. Results are ordered by status
// priority (watchlist first), then arrival descending.
func (e *Engine) Batch(text string, limit, offset int) Page {
	passports := entry.SplitPassports(text)
	if len(passports) > e.opts.MaxBatch {
		passports = passports[:e.opts.MaxBatch]
	}
	if limit <= 0 {
		limit = e.opts.PageSize
	}
	if offset < 0 {
		offset = 0
	}

	var found []summary.PersonSummary
	var missing []string
	for _, p := range passports {
		if s, ok := e.index[p]; ok {
			found = append(found, s)
		} else {
			missing = append(missing, p)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		pi, pj := registry.Priority(found[i].FinalStatus), registry.Priority(found[j].FinalStatus)
		if pi != pj {
			return pi < pj
		}
		if !found[i].ArrivalDate.Equal(found[j].ArrivalDate) {
			return found[i].ArrivalDate.After(found[j].ArrivalDate)
		}
		return found[i].Passport < found[j].Passport
	})

	page := paginate(found, limit, offset)
	page.NotFound = missing
	return page
}

// LastUpdate is the newest capture time across the snapshot.
func (e *Engine) LastUpdate() time.Time {
	var latest time.Time
	for _, p := range e.people {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	return latest
}
