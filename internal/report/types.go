package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities returns every severity in ascending order.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusRejected   Status = "rejected"
)

// Statuses returns every workflow status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusRejected}
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// Report is a stored bug report.
type Report struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Severity      Severity  `json:"severity"`
	CompanyName   string    `json:"companyName"`
	ReporterEmail string    `json:"reporterEmail"`
	BountyAmount  *float64  `json:"bountyAmount"` // nil when no bounty was requested
	Status        Status    `json:"status"`
	SubmittedAt   time.Time `json:"submittedAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateInput is the client payload for a new report. Any status or
// submission time sent by the client is not part of it and is dropped
// during decoding.
type CreateInput struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Description   string         `json:"description" validate:"required,max=5000"`
	Severity      Severity       `json:"severity" validate:"oneof=low medium high critical"`
	CompanyName   string         `json:"companyName" validate:"required,max=100"`
	ReporterEmail string         `json:"reporterEmail" validate:"required,simpleemail"`
	BountyAmount  OptionalAmount `json:"bountyAmount" validate:"omitempty,gte=0,lte=1000000000"`
}

// Normalize trims the text fields and lowercases the email.
func (in *CreateInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Severity = Severity(strings.TrimSpace(string(in.Severity)))
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ReporterEmail = strings.ToLower(strings.TrimSpace(in.ReporterEmail))
}

// MaxBounty is the largest bounty a report may request.
const MaxBounty = 1e9

// OptionalAmount is a bounty as sent by a client. Null, "", false and 0
// all mean "no bounty"; numeric strings are accepted. Infinities and NaN
// are malformed.
type OptionalAmount struct {
	Value     *float64
	Malformed bool
}

func (a *OptionalAmount) UnmarshalJSON(b []byte) error {
	*a = OptionalAmount{}
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		return nil
	case bytes.Equal(b, []byte("true")):
		a.Malformed = true
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.SetString(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	a.set(f)
	return nil
}

// SetString parses a bounty typed into a form field.
func (a *OptionalAmount) SetString(s string) {
	*a = OptionalAmount{}
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		a.Malformed = true
		return
	}
	a.set(f)
}

func (a *OptionalAmount) set(f float64) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		a.Malformed = true
		return
	}
	if f == 0 {
		return
	}
	a.Value = &f
}

// Filter narrows a listing. Zero values mean "no constraint".
type Filter struct {
	Severity    Severity
	Status      Status
	CompanyName string
	Limit       int
	Skip        int
}

type Pagination struct {
	Total int64 `json:"total"`
	Limit int   `json:"limit"`
	Skip  int   `json:"skip"`
}

// Page is one slice of a listing plus the number of reports matching the filter.
type Page struct {
	Reports    []Report
	Pagination Pagination
}

type Stats struct {
	Total          int64              `json:"total"`
	SeverityCounts map[Severity]int64 `json:"severityCounts"`
	StatusCounts   map[Status]int64   `json:"statusCounts"`
	TotalBounty    float64            `json:"totalBounty"`
}
