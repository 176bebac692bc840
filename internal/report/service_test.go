package report

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bugbounty-tracker/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := zaptest.NewLogger(t)

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := storage.Open(context.Background(), dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewService(db.DB, logger)
	require.NoError(t, err)
	return s
}

func validInput() CreateInput {
	return CreateInput{
		Title:         "SQL injection in login form",
		Description:   "The username field is passed straight into a query.",
		Severity:      SeverityHigh,
		CompanyName:   "Acme Corp",
		ReporterEmail: "researcher@example.com",
	}
}

func amount(f float64) OptionalAmount {
	return OptionalAmount{Value: &f}
}

func TestCreate_ForcesOpenStatusAndServerTime(t *testing.T) {
	s := newTestService(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	in := validInput()
	in.ReporterEmail = "  Researcher@Example.COM "
	in.Title = "  padded title  "

	r, err := s.Create(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StatusOpen, r.Status)
	assert.True(t, r.SubmittedAt.Equal(fixed))
	assert.Equal(t, "researcher@example.com", r.ReporterEmail)
	assert.Equal(t, "padded title", r.Title)
	assert.Nil(t, r.BountyAmount)

	got, err := s.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, StatusOpen, got.Status)
	assert.True(t, got.SubmittedAt.Equal(fixed))
	assert.Nil(t, got.BountyAmount)
}

func TestCreate_ValidationFailurePersistsNothing(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	cases := map[string]struct {
		mutate  func(*CreateInput)
		field   string
		message string
	}{
		"missing title": {
			mutate:  func(in *CreateInput) { in.Title = "   " },
			field:   "title",
			message: "Title is required",
		},
		"long title": {
			mutate:  func(in *CreateInput) { in.Title = strings.Repeat("a", 201) },
			field:   "title",
			message: "Title cannot exceed 200 characters",
		},
		"bad severity": {
			mutate:  func(in *CreateInput) { in.Severity = "urgent" },
			field:   "severity",
			message: "Invalid severity level",
		},
		"missing severity": {
			mutate:  func(in *CreateInput) { in.Severity = "" },
			field:   "severity",
			message: "Invalid severity level",
		},
		"bad email": {
			mutate:  func(in *CreateInput) { in.ReporterEmail = "not-an-email" },
			field:   "reporterEmail",
			message: "Invalid email address",
		},
		"negative bounty": {
			mutate:  func(in *CreateInput) { in.BountyAmount = amount(-5) },
			field:   "bountyAmount",
			message: "Bounty amount must be a positive number",
		},
		"malformed bounty": {
			mutate:  func(in *CreateInput) { in.BountyAmount = OptionalAmount{Malformed: true} },
			field:   "bountyAmount",
			message: "Bounty amount must be a positive number",
		},
		"infinite bounty": {
			mutate:  func(in *CreateInput) { in.BountyAmount.SetString("Infinity") },
			field:   "bountyAmount",
			message: "Bounty amount must be a positive number",
		},
		"NaN bounty": {
			mutate:  func(in *CreateInput) { in.BountyAmount.SetString("NaN") },
			field:   "bountyAmount",
			message: "Bounty amount must be a positive number",
		},
		"bounty over cap": {
			mutate:  func(in *CreateInput) { in.BountyAmount = amount(1e308) },
			field:   "bountyAmount",
			message: "Bounty amount cannot exceed 1,000,000,000",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			_, err := s.Create(ctx, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.message, verr.For(tc.field))
		})
	}

	page, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Pagination.Total)
	assert.Empty(t, page.Reports)
}

func TestCreate_ReportsEveryFailingField(t *testing.T) {
	s := newTestService(t)

	_, err := s.Create(context.Background(), CreateInput{Severity: SeverityLow})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, "Title is required", verr.For("title"))
	assert.Equal(t, "Description is required", verr.For("description"))
	assert.Equal(t, "Company name is required", verr.For("companyName"))
	assert.Equal(t, "Email is required", verr.For("reporterEmail"))
	assert.Empty(t, verr.For("severity"))
}

func TestList_FiltersAndOrdering(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	create := func(company string, sev Severity) *Report {
		in := validInput()
		in.CompanyName = company
		in.Severity = sev
		r, err := s.Create(ctx, in)
		require.NoError(t, err)
		return r
	}
	first := create("Acme Corp", SeverityLow)
	create("Globex", SeverityCritical)
	last := create("ACME Labs", SeverityCritical)

	page, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, page.Reports, 3)
	assert.Equal(t, last.ID, page.Reports[0].ID)
	assert.Equal(t, first.ID, page.Reports[2].ID)
	assert.Equal(t, DefaultLimit, page.Pagination.Limit)

	page, err = s.List(ctx, Filter{CompanyName: "acme"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Pagination.Total)

	page, err = s.List(ctx, Filter{CompanyName: "acme", Severity: SeverityCritical})
	require.NoError(t, err)
	require.Len(t, page.Reports, 1)
	assert.Equal(t, last.ID, page.Reports[0].ID)

	page, err = s.List(ctx, Filter{Limit: 1, Skip: 1})
	require.NoError(t, err)
	require.Len(t, page.Reports, 1)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.Equal(t, 1, page.Pagination.Skip)

	page, err = s.List(ctx, Filter{Status: StatusResolved})
	require.NoError(t, err)
	assert.Empty(t, page.Reports)
	assert.NotNil(t, page.Reports)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.BountyAmount = amount(250)
	r, err := s.Create(ctx, in)
	require.NoError(t, err)

	updated, err := s.UpdateStatus(ctx, r.ID, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)
	assert.Equal(t, r.Title, updated.Title)
	require.NotNil(t, updated.BountyAmount)
	assert.Equal(t, 250.0, *updated.BountyAmount)
	assert.True(t, updated.SubmittedAt.Equal(r.SubmittedAt))

	_, err = s.UpdateStatus(ctx, r.ID, "done")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid status value", verr.For("status"))

	_, err = s.UpdateStatus(ctx, r.ID, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Status is required", verr.For("status"))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)

	_, err = s.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", StatusClosed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndDelete_Missing(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)

	r, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	other, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "not-a-uuid"), ErrNotFound)
	page, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Pagination.Total)
	for _, id := range []string{r.ID, other.ID} {
		_, err := s.Get(ctx, id)
		assert.NoError(t, err)
	}

	require.NoError(t, s.Delete(ctx, r.ID))
	assert.ErrorIs(t, s.Delete(ctx, r.ID), ErrNotFound)

	_, err = s.Get(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, other.ID)
	assert.NoError(t, err)
}

func TestStats_MaxBountiesStayFinite(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		in := validInput()
		in.BountyAmount = amount(MaxBounty)
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3*MaxBounty, st.TotalBounty)
}

func TestStats(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.TotalBounty)
	assert.Len(t, empty.SeverityCounts, 4)
	assert.Len(t, empty.StatusCounts, 5)

	a := validInput()
	a.BountyAmount = amount(1000)
	a.Severity = SeverityCritical
	ra, err := s.Create(ctx, a)
	require.NoError(t, err)

	b := validInput()
	b.BountyAmount = amount(500.5)
	_, err = s.Create(ctx, b)
	require.NoError(t, err)

	_, err = s.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, ra.ID, StatusResolved)
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Total)
	assert.InDelta(t, 1500.5, st.TotalBounty, 0.001)
	assert.EqualValues(t, 1, st.SeverityCounts[SeverityCritical])
	assert.EqualValues(t, 2, st.SeverityCounts[SeverityHigh])
	assert.EqualValues(t, 0, st.SeverityCounts[SeverityLow])
	assert.EqualValues(t, 2, st.StatusCounts[StatusOpen])
	assert.EqualValues(t, 1, st.StatusCounts[StatusResolved])
}
