package submissions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/feedback-ai/internal/application"
	appai "github.com/bryanwahyu/feedback-ai/internal/application/ai"
	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
)

// RefineMode selects when the background refinement pass runs.
type RefineMode string

const (
	RefineOff      RefineMode = "off"
	RefineFallback RefineMode = "fallback" // only records annotated by the heuristic
	RefineAlways   RefineMode = "always"
)

const (
	defaultTimeout    = 20 * time.Second
	defaultMaxWorkers = 2
)

// Recorder receives pipeline outcomes, typically for metrics.
type Recorder interface {
	Annotated(source domain.Source, failure ai.FailureKind)
	Refined(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) Annotated(domain.Source, ai.FailureKind) {}
func (nopRecorder) Refined(bool)                            {}

// PipelineConfig tunes AI calls.
type PipelineConfig struct {
	Timeout    time.Duration
	MaxWorkers int
	RefineMode RefineMode
}

// Pipeline drives a submission from processing to complete. Every exported
// method is safe for concurrent use.
type Pipeline struct {
	Repo     domain.Repository
	Primary  ai.Annotator // nil means heuristic only
	Fallback ai.Annotator
	Refiner  ai.Refiner
	Events   domain.EventPublisher
	Recorder Recorder
	Clock    application.Clock

	timeout time.Duration
	refine  RefineMode
	sem     *semaphore.Weighted
	flight  singleflight.Group
	locks   keyedMutex
	wg      sync.WaitGroup
}

func NewPipeline(repo domain.Repository, primary ai.Annotator, refiner ai.Refiner, cfg PipelineConfig) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	switch cfg.RefineMode {
	case RefineOff, RefineAlways, RefineFallback:
	default:
		cfg.RefineMode = RefineFallback
	}
	return &Pipeline{
		Repo:     repo,
		Primary:  primary,
		Fallback: appai.Heuristic{},
		Refiner:  refiner,
		Recorder: nopRecorder{},
		Clock:    application.SystemClock{},
		timeout:  cfg.Timeout,
		refine:   cfg.RefineMode,
		sem:      semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		locks:    keyedMutex{locks: map[domain.ID]*keyLock{}},
	}
}

// Dispatch starts annotation of id in the background and returns a channel
// with the outcome. Concurrent dispatches of the same id share one run.
func (p *Pipeline) Dispatch(id domain.ID) <-chan singleflight.Result {
	p.wg.Add(1)
	out := make(chan singleflight.Result, 1)
	ch := p.flight.DoChan(string(id), func() (any, error) {
		return p.annotate(context.Background(), id)
	})
	go func() {
		defer p.wg.Done()
		out <- <-ch
	}()
	return out
}

// Await dispatches id and waits for the outcome or ctx. Cancelling ctx stops
// the wait only; the annotation keeps running.
func (p *Pipeline) Await(ctx context.Context, id domain.ID) (*domain.Submission, error) {
	select {
	case r := <-p.Dispatch(id):
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.Submission), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resume re-dispatches records still processing, e.g. after a restart.
func (p *Pipeline) Resume(ctx context.Context) (int, error) {
	pending, err := p.Repo.List(ctx, domain.Criteria{Status: domain.StatusProcessing})
	if err != nil {
		return 0, err
	}
	for _, s := range pending {
		p.Dispatch(s.ID)
	}
	if len(pending) > 0 {
		logger.WithField("count", len(pending)).Info("resumed pending submissions")
	}
	return len(pending), nil
}

// Wait blocks until all detached work, refinements included, has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Drain is Wait bounded by ctx.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) annotate(ctx context.Context, id domain.ID) (*domain.Submission, error) {
	s, err := p.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsComplete() {
		return s, nil
	}

	log := logger.WithFields(logrus.Fields{"submission_id": id, "rating": s.Rating})
	ann, source, failure := p.firstPass(ctx, s)
	if failure != "" {
		log.WithField("failure", failure).Warn("ai annotation failed, using heuristic")
	}

	now := p.Clock.Now()
	processing, complete := domain.StatusProcessing, domain.StatusComplete
	patch := domain.Patch{
		ExpectStatus:         &processing,
		Status:               &complete,
		AIResponse:           &ann.Response,
		AISummary:            &ann.Summary,
		AIRecommendedActions: &ann.RecommendedActions,
		Prediction:           &domain.Prediction{Stars: ann.PredictedStars, Explanation: ann.PredictionExplanation},
		AnnotationSource:     &source,
		AnnotatedAt:          &now,
	}
	updated, err := p.update(ctx, id, patch)
	if errors.Is(err, domain.ErrStaleUpdate) {
		// another writer completed it first
		return p.Repo.Get(ctx, id)
	}
	if err != nil {
		log.WithError(err).Error("failed to store annotation")
		return nil, err
	}
	p.Recorder.Annotated(source, failure)
	p.publish(ctx, domain.NewEvent(domain.EventCompleted, updated, now))
	log.WithField("source", source).Info("submission annotated")

	if p.shouldRefine(source) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.refineOne(context.Background(), id)
		}()
	}
	return updated, nil
}

// firstPass is the only place that decides between the AI and the heuristic.
func (p *Pipeline) firstPass(ctx context.Context, s *domain.Submission) (ai.Annotation, domain.Source, ai.FailureKind) {
	req := ai.Request{Rating: s.Rating, ReviewText: s.ReviewText}
	failure := ai.FailureDisabled
	if p.Primary != nil {
		ann, err := bounded(ctx, p, func(c context.Context) (ai.Annotation, error) {
			return p.Primary.Annotate(c, req)
		})
		if err == nil {
			return ann, domain.SourceAI, ""
		}
		failure = ai.KindOf(err)
		if failure == "" {
			failure = ai.FailureTransport
		}
	}
	ann, err := p.Fallback.Annotate(ctx, req)
	if err != nil {
		ann, _ = appai.Heuristic{}.Annotate(ctx, req)
	}
	return ann, domain.SourceHeuristic, failure
}

func (p *Pipeline) shouldRefine(source domain.Source) bool {
	if p.Refiner == nil || p.Primary == nil {
		return false
	}
	switch p.refine {
	case RefineAlways:
		return true
	case RefineFallback:
		return source == domain.SourceHeuristic
	default:
		return false
	}
}

// refineOne improves the text fields of a complete record. Failures are
// logged and otherwise ignored.
func (p *Pipeline) refineOne(ctx context.Context, id domain.ID) {
	log := logger.WithField("submission_id", id)
	s, err := p.Repo.Get(ctx, id)
	if err != nil || !s.IsComplete() {
		return
	}
	req := ai.Request{Rating: s.Rating, ReviewText: s.ReviewText}
	current := ai.Refinement{Response: s.AIResponse, Summary: s.AISummary, RecommendedActions: s.AIRecommendedActions}
	r, err := bounded(ctx, p, func(c context.Context) (ai.Refinement, error) {
		return p.Refiner.Refine(c, req, current)
	})
	if err != nil {
		p.Recorder.Refined(false)
		log.WithError(err).Debug("refinement skipped")
		return
	}

	now := p.Clock.Now()
	complete := domain.StatusComplete
	updated, err := p.update(ctx, id, domain.Patch{
		ExpectStatus:         &complete,
		AIResponse:           &r.Response,
		AISummary:            &r.Summary,
		AIRecommendedActions: &r.RecommendedActions,
		RefinedAt:            &now,
	})
	if err != nil {
		p.Recorder.Refined(false)
		log.WithError(err).Warn("failed to store refinement")
		return
	}
	p.Recorder.Refined(true)
	p.publish(ctx, domain.NewEvent(domain.EventRefined, updated, now))
}

func (p *Pipeline) update(ctx context.Context, id domain.ID, patch domain.Patch) (*domain.Submission, error) {
	unlock := p.locks.Lock(id)
	defer unlock()
	return p.Repo.Update(ctx, id, patch)
}

func (p *Pipeline) publish(ctx context.Context, e domain.Event) {
	if p.Events == nil {
		return
	}
	if err := p.Events.Publish(ctx, e); err != nil {
		logger.WithError(err).WithField("event", e.Type).Warn("publish event failed")
	}
}

// bounded runs fn under the worker semaphore and the per-call timeout. The
// deadline is enforced here even if fn ignores its context; a late result is
// dropped into the buffered channel and discarded.
func bounded[T any](ctx context.Context, p *Pipeline, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sem.Acquire(cctx, 1); err != nil {
		return zero, ai.Classify(ai.FailureTimeout, err)
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn(cctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-cctx.Done():
		return zero, ai.Classify(ai.FailureTimeout, cctx.Err())
	}
}

// keyedMutex serializes updates per submission id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.ID]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id domain.ID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
