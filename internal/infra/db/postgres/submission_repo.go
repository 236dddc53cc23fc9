package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
  seq BIGSERIAL PRIMARY KEY,
  id VARCHAR(64) NOT NULL UNIQUE,
  rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
  review_text TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  status VARCHAR(16) NOT NULL,
  ai_response TEXT NOT NULL,
  ai_summary TEXT NOT NULL,
  ai_recommended_actions TEXT NOT NULL,
  predicted_stars SMALLINT NULL,
  prediction_explanation TEXT NULL,
  annotation_source VARCHAR(16) NOT NULL,
  annotated_at TIMESTAMPTZ NULL,
  refined_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions (created_at);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions (status);`

const columns = `id, rating, review_text, created_at, status,
       ai_response, ai_summary, ai_recommended_actions,
       predicted_stars, prediction_explanation,
       annotation_source, annotated_at, refined_at`

// unique_violation
const codeUniqueViolation = pq.ErrorCode("23505")

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// EnsureSchema creates the table and indexes when missing.
func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return &domain.StoreIOError{Op: "schema", Err: err}
	}
	return nil
}

func (r *SubmissionRepository) Append(ctx context.Context, s *domain.Submission) error {
	const q = `
INSERT INTO submissions
  (id, rating, review_text, created_at, status,
   ai_response, ai_summary, ai_recommended_actions,
   predicted_stars, prediction_explanation,
   annotation_source, annotated_at, refined_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	source := s.AnnotationSource
	if source == "" {
		source = domain.SourcePending
	}
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.Rating, s.ReviewText, s.Timestamp.UTC(), s.Status,
		s.AIResponse, s.AISummary, s.AIRecommendedActions,
		nullInt(s.PredictedStars), nullString(s.PredictionExplanation),
		source, nullTime(s.AnnotatedAt), nullTime(s.RefinedAt),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return &domain.ValidationError{Field: "id", Message: "duplicate submission id"}
	}
	if err != nil {
		return &domain.StoreIOError{Op: "append", Err: err}
	}
	return nil
}

// Update runs SELECT ... FOR UPDATE, applies the patch and writes back in one
// transaction.
func (r *SubmissionRepository) Update(ctx context.Context, id domain.ID, p domain.Patch) (*domain.Submission, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.StoreIOError{Op: "update", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	s, err := scanSubmission(tx.QueryRowContext(ctx, `SELECT `+columns+` FROM submissions WHERE id=$1 FOR UPDATE;`, id))
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
UPDATE submissions SET
  status=$1, ai_response=$2, ai_summary=$3, ai_recommended_actions=$4,
  predicted_stars=$5, prediction_explanation=$6,
  annotation_source=$7, annotated_at=$8, refined_at=$9
WHERE id=$10;`
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

func (r *SubmissionRepository) Get(ctx context.Context, id domain.ID) (*domain.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM submissions WHERE id=$1 LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(id)
	}
	if err != nil {
		return nil, &domain.StoreIOError{Op: "get", Err: err}
	}
	return s, nil
}

func (r *SubmissionRepository) Latest(ctx context.Context) (*domain.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM submissions ORDER BY seq DESC LIMIT 1;`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreIOError{Op: "latest", Err: err}
	}
	return s, nil
}

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

// listQuery numbers placeholders ($1, $2, ...) in the order of the bounds.
func listQuery(c domain.Criteria) sq.SelectBuilder {
	b := sq.Select(columns).From("submissions").PlaceholderFormat(sq.Dollar)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var (
		s           domain.Submission
		stars       sql.NullInt64
		explanation sql.NullString
		annotatedAt pq.NullTime
		refinedAt   pq.NullTime
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
	if stars.Valid {
		n := int(stars.Int64)
		s.PredictedStars = &n
	}
	if explanation.Valid {
		e := explanation.String
		s.PredictionExplanation = &e
	}
	if annotatedAt.Valid {
		t := annotatedAt.Time.UTC()
		s.AnnotatedAt = &t
	}
	if refinedAt.Valid {
		t := refinedAt.Time.UTC()
		s.RefinedAt = &t
	}
	return &s, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) pq.NullTime {
	if v == nil {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: v.UTC(), Valid: true}
}
