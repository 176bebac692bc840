package report

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("bug report not found")

const reportColumns = `id, title, description, severity, company_name, reporter_email,
	bounty_amount, status, submitted_at, created_at, updated_at`

type Service struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, logger *zap.Logger) (*Service, error) {
	s := &Service{db: db, logger: logger, now: time.Now}
	if err := s.initSchema(); err != nil {
		return nil, errors.Wrap(err, "init bug report schema")
	}
	return s, nil
}

func (s *Service) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS bug_reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL CHECK (length(title) BETWEEN 1 AND 200),
		description TEXT NOT NULL CHECK (length(description) BETWEEN 1 AND 5000),
		severity TEXT NOT NULL DEFAULT 'medium'
			CHECK (severity IN ('low', 'medium', 'high', 'critical')),
		company_name TEXT NOT NULL CHECK (length(company_name) BETWEEN 1 AND 100),
		reporter_email TEXT NOT NULL,
		bounty_amount REAL CHECK (bounty_amount IS NULL OR (bounty_amount >= 0 AND bounty_amount <= 1000000000)),
		status TEXT NOT NULL DEFAULT 'open'
			CHECK (status IN ('open', 'in-progress', 'resolved', 'closed', 'rejected')),
		submitted_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bug_reports_severity_submitted ON bug_reports (severity, submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_bug_reports_status ON bug_reports (status);
	CREATE INDEX IF NOT EXISTS idx_bug_reports_company ON bug_reports (company_name);
	`
	_, err := s.db.Exec(query)
	return err
}

// Create validates in and stores it as a new open report.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r := &Report{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Description:   in.Description,
		Severity:      in.Severity,
		CompanyName:   in.CompanyName,
		ReporterEmail: in.ReporterEmail,
		BountyAmount:  in.BountyAmount.Value,
		Status:        StatusOpen,
		SubmittedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `INSERT INTO bug_reports (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Title, r.Description, string(r.Severity), r.CompanyName, r.ReporterEmail,
		nullFloat(r.BountyAmount), string(r.Status), r.SubmittedAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert bug report")
	}

	s.logger.Info("bug report created",
		zap.String("id", r.ID),
		zap.String("severity", string(r.Severity)),
		zap.String("company", r.CompanyName))
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM bug_reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get bug report %s", id)
	}
	return r, nil
}

// List returns the newest reports matching f and the total number of matches.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	f = f.withDefaults()

	var conds []string
	var args []interface{}
	if f.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CompanyName != "" {
		conds = append(conds, "contains_fold(company_name, ?)")
		args = append(args, f.CompanyName)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bug_reports`+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count bug reports")
	}

	query := `SELECT ` + reportColumns + ` FROM bug_reports` + where +
		` ORDER BY submitted_at DESC, rowid DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Skip)...)
	if err != nil {
		return nil, errors.Wrap(err, "query bug reports")
	}
	defer rows.Close()

	reports := make([]Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan bug report")
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate bug reports")
	}

	return &Page{
		Reports:    reports,
		Pagination: Pagination{Total: total, Limit: f.Limit, Skip: f.Skip},
	}, nil
}

// UpdateStatus moves a report to status. Nothing else about the report changes.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Report, error) {
	if status == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "status", Message: "Status is required"}}}
	}
	if !status.Valid() {
		return nil, &ValidationError{Fields: []FieldError{{Field: "status", Message: "Invalid status value"}}}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE bug_reports SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC(), id)
	if err != nil {
		return nil, errors.Wrapf(err, "update status of bug report %s", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	s.logger.Info("bug report status updated", zap.String("id", id), zap.String("status", string(status)))
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM bug_reports WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete bug report %s", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	s.logger.Info("bug report deleted", zap.String("id", id))
	return nil
}

// Stats aggregates every report. All known severities and statuses are
// present in the result, with zero counts where nothing matches.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, status, COUNT(*), COALESCE(SUM(bounty_amount), 0)
		FROM bug_reports
		GROUP BY severity, status`)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate bug reports")
	}
	defer rows.Close()

	st := &Stats{
		SeverityCounts: make(map[Severity]int64, 4),
		StatusCounts:   make(map[Status]int64, 5),
	}
	for _, sev := range Severities() {
		st.SeverityCounts[sev] = 0
	}
	for _, status := range Statuses() {
		st.StatusCounts[status] = 0
	}

	for rows.Next() {
		var (
			sev    string
			status string
			count  int64
			bounty float64
		)
		if err := rows.Scan(&sev, &status, &count, &bounty); err != nil {
			return nil, errors.Wrap(err, "scan aggregate")
		}
		st.Total += count
		st.SeverityCounts[Severity(sev)] += count
		st.StatusCounts[Status(status)] += count
		st.TotalBounty += bounty
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate aggregate")
	}
	if math.IsInf(st.TotalBounty, 0) || math.IsNaN(st.TotalBounty) {
		return nil, errors.Newf("total bounty is not finite: %v", st.TotalBounty)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r        Report
		severity string
		status   string
		bounty   sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &severity, &r.CompanyName, &r.ReporterEmail,
		&bounty, &status, &r.SubmittedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Severity = Severity(severity)
	r.Status = Status(status)
	if bounty.Valid {
		v := bounty.Float64
		r.BountyAmount = &v
	}
	return &r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
