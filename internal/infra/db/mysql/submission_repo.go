package mysql

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
  seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  id VARCHAR(64) NOT NULL,
  rating TINYINT NOT NULL,
  review_text TEXT NOT NULL,
  created_at DATETIME(6) NOT NULL,
  status VARCHAR(16) NOT NULL,
  ai_response TEXT NOT NULL,
  ai_summary TEXT NOT NULL,
  ai_recommended_actions TEXT NOT NULL,
  predicted_stars TINYINT NULL,
  prediction_explanation TEXT NULL,
  annotation_source VARCHAR(16) NOT NULL,
  annotated_at DATETIME(6) NULL,
  refined_at DATETIME(6) NULL,
  UNIQUE KEY uq_submissions_id (id),
  KEY idx_submissions_created (created_at),
  KEY idx_submissions_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

const columns = `id, rating, review_text, created_at, status,
       ai_response, ai_summary, ai_recommended_actions,
       predicted_stars, prediction_explanation,
       annotation_source, annotated_at, refined_at`

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// EnsureSchema creates the submissions table when missing.
func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return &domain.StoreIOError{Op: "schema", Err: err}
	}
	return nil
}

// Append insert 1 submission
func (r *SubmissionRepository) Append(ctx context.Context, s *domain.Submission) error {
	const q = `
INSERT INTO submissions
(id, rating, review_text, created_at, status,
 ai_response, ai_summary, ai_recommended_actions,
 predicted_stars, prediction_explanation,
 annotation_source, annotated_at, refined_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?);`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.Rating, s.ReviewText, s.Timestamp.UTC(), s.Status,
		s.AIResponse, s.AISummary, s.AIRecommendedActions,
		nullInt(s.PredictedStars), nullString(s.PredictionExplanation),
		sourceOrPending(s.AnnotationSource), nullTime(s.AnnotatedAt), nullTime(s.RefinedAt),
	)
	if err != nil {
		return &domain.StoreIOError{Op: "append", Err: err}
	}
	return nil
}

// Update locks the row, applies the patch in Go and writes the mutable
// columns back in the same transaction.
func (r *SubmissionRepository) Update(ctx context.Context, id domain.ID, p domain.Patch) (*domain.Submission, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.StoreIOError{Op: "update", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `SELECT `+columns+` FROM submissions WHERE id=? FOR UPDATE;`, id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(id)
	}
	if err != nil {
		return nil, &domain.StoreIOError{Op: "update", Err: err}
	}
	if err := p.Apply(s); err != nil {
		return nil, err
	}

	const q = `
UPDATE submissions
SET status=?, ai_response=?, ai_summary=?, ai_recommended_actions=?,
    predicted_stars=?, prediction_explanation=?,
    annotation_source=?, annotated_at=?, refined_at=?
WHERE id=?;`
	if _, err := tx.ExecContext(ctx, q,
		s.Status, s.AIResponse, s.AISummary, s.AIRecommendedActions,
		nullInt(s.PredictedStars), nullString(s.PredictionExplanation),
		s.AnnotationSource, nullTime(s.AnnotatedAt), nullTime(s.RefinedAt),
		id,
	); err != nil {
		return nil, &domain.StoreIOError{Op: "update", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &domain.StoreIOError{Op: "update", Err: err}
	}
	return s, nil
}

// Get by ID
func (r *SubmissionRepository) Get(ctx context.Context, id domain.ID) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM submissions WHERE id=? LIMIT 1;`, id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(id)
	}
	if err != nil {
		return nil, &domain.StoreIOError{Op: "get", Err: err}
	}
	return s, nil
}

// Latest returns the last inserted row.
func (r *SubmissionRepository) Latest(ctx context.Context) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM submissions ORDER BY seq DESC LIMIT 1;`)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreIOError{Op: "latest", Err: err}
	}
	return s, nil
}

// List newest-first with the criteria translated to WHERE clauses.
func (r *SubmissionRepository) List(ctx context.Context, c domain.Criteria) ([]*domain.Submission, error) {
	q, args, err := listQuery(c).ToSql()
	if err != nil {
		return nil, &domain.StoreIOError{Op: "list", Err: err}
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &domain.StoreIOError{Op: "list", Err: err}
	}
	defer rows.Close()

	out := []*domain.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, &domain.StoreIOError{Op: "list", Err: err}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreIOError{Op: "list", Err: err}
	}
	return out, nil
}

func listQuery(c domain.Criteria) sq.SelectBuilder {
	b := sq.Select(columns).From("submissions")
	if c.Rating != 0 {
		b = b.Where(sq.Eq{"rating": c.Rating})
	}
	if c.Status != "" {
		b = b.Where(sq.Eq{"status": string(c.Status)})
	}
	if !c.From.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": c.From.UTC()})
	}
	if !c.Before.IsZero() {
		b = b.Where(sq.Lt{"created_at": c.Before.UTC()})
	}
	return b.OrderBy("seq DESC")
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var (
		s           domain.Submission
		stars       sql.NullInt64
		explanation sql.NullString
		annotatedAt sql.NullTime
		refinedAt   sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.Rating, &s.ReviewText, &s.Timestamp, &s.Status,
		&s.AIResponse, &s.AISummary, &s.AIRecommendedActions,
		&stars, &explanation,
		&s.AnnotationSource, &annotatedAt, &refinedAt,
	); err != nil {
		return nil, err
	}
	s.Timestamp = s.Timestamp.UTC()
	s.PredictedStars = intPtr(stars)
	s.PredictionExplanation = stringPtr(explanation)
	s.AnnotatedAt = timePtr(annotatedAt)
	s.RefinedAt = timePtr(refinedAt)
	return &s, nil
}
