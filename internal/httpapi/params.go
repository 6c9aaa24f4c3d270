package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"staytrack/internal/entry"
	"staytrack/internal/query"
)

func intParam(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optIntParam(q url.Values, key string) (*int, error) {
	if strings.TrimSpace(q.Get(key)) == "" {
		return nil, nil
	}
	n, err := intParam(q, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ParseFilter reads a query.Filter from URL parameters. Dates accept every
// import date format; continents is a comma separated list.
func ParseFilter(q url.Values) (query.Filter, error) {
	var f query.Filter
	for _, key := range []string{"date_from", "date_to"} {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		d, ok := entry.ParseDate(v)
		if !ok {
			return f, fmt.Errorf("%s: unrecognised date %q", key, v)
		}
		if key == "date_from" {
			f.DateFrom = &d
		} else {
			f.DateTo = &d
		}
	}
	if v := q.Get("continents"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				f.Continents = append(f.Continents, c)
			}
		}
	}

	var err error
	if f.MinTotalDays, err = optIntParam(q, "min_total_days"); err != nil {
		return f, err
	}
	if f.MinLifetimeDays, err = optIntParam(q, "min_lifetime_days"); err != nil {
		return f, err
	}
	if f.DaysValue, err = optIntParam(q, "days_value"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q, "offset"); err != nil {
		return f, err
	}
	f.DaysOp = strings.TrimSpace(q.Get("days_op"))
	f.Status = strings.TrimSpace(q.Get("status"))
	f.FreeText = strings.TrimSpace(q.Get("q"))
	return f, nil
}
