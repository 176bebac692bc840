package report

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ParseFilter reads severity, status, companyName, limit and skip from
// query parameters. Unusable limit or skip values fall back to defaults.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Severity:    Severity(strings.TrimSpace(q.Get("severity"))),
		Status:      Status(strings.TrimSpace(q.Get("status"))),
		CompanyName: strings.TrimSpace(q.Get("companyName")),
		Limit:       atoiOr(q.Get("limit"), DefaultLimit),
		Skip:        atoiOr(q.Get("skip"), 0),
	}
	return f.withDefaults()
}

func (f Filter) withDefaults() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return f
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
