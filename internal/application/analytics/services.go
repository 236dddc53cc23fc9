package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bryanwahyu/feedback-ai/internal/application"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
)

const defaultReadTimeout = 5 * time.Second

// Cache stores encoded reports. Misses return ok=false and no error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Versioner reports a counter that moves on every store write.
type Versioner interface {
	Version() uint64
}

// Service reads the store and runs the engine. Reads never wait on AI work.
type Service struct {
	Repo        domain.Repository
	Engine      *Engine
	Cache       Cache
	Versions    Versioner
	CacheTTL    time.Duration
	Clock       application.Clock
	ReadTimeout time.Duration
}

// Analytics returns the report for q. Only an invalid query is an error; a
// store failure yields a degraded report.
func (s *Service) Analytics(ctx context.Context, q domain.Query) (Report, error) {
	now := s.now()
	c, err := q.Resolve(now, s.Engine.Location)
	if err != nil {
		return Report{}, err
	}

	key := s.cacheKey(q, now)
	if key != "" {
		if raw, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			var cached Report
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if err != nil {
			logger.WithError(err).Debug("analytics cache get failed")
		}
	}

	rctx, cancel := s.readContext(ctx)
	defer cancel()
	subs, err := s.Repo.List(rctx, c)
	if err != nil {
		logger.WithError(err).Error("analytics read failed, serving degraded report")
		return s.Engine.Degraded(c, now, err), nil
	}
	report := s.Engine.Compute(subs, c, now)

	if key != "" {
		if raw, err := json.Marshal(report); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.CacheTTL); err != nil {
				logger.WithError(err).Debug("analytics cache set failed")
			}
		}
	}
	return report, nil
}

// Stats summarizes every stored submission. A store failure yields zeroed,
// degraded stats.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	rctx, cancel := s.readContext(ctx)
	defer cancel()
	subs, err := s.Repo.List(rctx, domain.Criteria{})
	if err != nil {
		logger.WithError(err).Error("stats read failed, serving degraded stats")
		st := s.Engine.Stats(nil)
		st.Degraded = true
		return st, nil
	}
	return s.Engine.Stats(subs), nil
}

// cacheKey is empty when caching is off. Relative ranges move with the
// clock, so the minute is part of the key.
func (s *Service) cacheKey(q domain.Query, now time.Time) string {
	if s.Cache == nil || s.Versions == nil || s.CacheTTL <= 0 {
		return ""
	}
	return fmt.Sprintf("analytics:v%d:%d:r%d:d%s:%s:%s:%s",
		s.Versions.Version(), now.Truncate(time.Minute).Unix(),
		q.Rating, q.Date, q.DateRange, q.StartDate, q.EndDate)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.ReadTimeout
	if d <= 0 {
		d = defaultReadTimeout
	}
	return context.WithTimeout(ctx, d)
}
