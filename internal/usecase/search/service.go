package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	"github.com/kailas-cloud/shopsearch/internal/usecase/answer"
	"github.com/kailas-cloud/shopsearch/internal/usecase/retrieval"
)

const tracerName = "github.com/kailas-cloud/shopsearch/internal/usecase/search"

// Degradation causes reported in the response and in metrics.
const (
	CauseEmbedding = "embedding"
	CauseRetriever = "retriever"
	CauseCatalog   = "catalog"
	CauseAnswer    = "answer"
	CauseSession   = "session"
)

// Service runs one query through routing, retrieval, composition and session memory.
type Service struct {
	router   Router
	agents   Dispatcher
	composer Composer
	sessions SessionStore
	logger   *zap.Logger
	now      func() time.Time
}

// New creates the search orchestrator.
func New(r Router, agents Dispatcher, c Composer, sessions SessionStore, logger *zap.Logger) *Service {
	return &Service{
		router:   r,
		agents:   agents,
		composer: c,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// run tracks the lifecycle of a single search.
type run struct {
	state    State
	span     trace.Span
	logger   *zap.Logger
	degraded []string
}

func (r *run) to(next State) {
	if !CanTransition(r.state, next) {
		r.logger.Error("Illegal search state transition",
			zap.String("from", string(r.state)), zap.String("to", string(next)))
	}
	r.logger.Debug("Search state", zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.span.AddEvent(string(next))
	r.state = next
	if next.Terminal() {
		r.span.SetAttributes(attribute.String("search.final_state", string(next)))
		r.logger.Debug("Search finished", zap.String("state", string(next)), zap.Strings("degraded", r.degraded))
	}
}

func (r *run) degrade(cause string) {
	for _, c := range r.degraded {
		if c == cause {
			return
		}
	}
	r.degraded = append(r.degraded, cause)
	metrics.SearchDegradedTotal.WithLabelValues(cause).Inc()
}

// Search answers q. Only domain.ErrInvalidQuery is returned as an error;
// every other dependency failure degrades the response.
func (s *Service) Search(ctx context.Context, q request.Query) (*result.Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "search")
	defer span.End()

	start := time.Now()
	r := &run{
		state:  StateReceived,
		span:   span,
		logger: s.logger.With(zap.String("session_id", q.SessionID())),
	}
	span.AddEvent(string(StateReceived))

	var history []conversation.Turn
	if strings.TrimSpace(q.Text()) != "" {
		history = s.loadHistory(ctx, r, q.SessionID())
	}

	it, hints, err := s.router.Classify(ctx, q, history)
	r.to(StateRouted)
	if err != nil {
		r.to(StateRejected)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected")
		metrics.SearchQueriesTotal.WithLabelValues("", string(StateRejected)).Inc()
		return nil, fmt.Errorf("classify: %w", err)
	}
	span.SetAttributes(
		attribute.String("search.intent", string(it)),
		attribute.Bool("search.product_hint", hints.HasProduct()),
	)

	r.to(StateRetrieving)
	retrieved, searched := s.retrieve(ctx, r, q, it, hints, history)

	r.to(StateComposing)
	var ans *string
	if searched {
		ans = s.compose(ctx, r, q, it, retrieved, history)
	}

	r.to(StatePersisted)
	s.persist(ctx, r, q, ans)

	resp := result.New(ans, retrieved.Direct, retrieved.Items, it, r.degraded)

	r.to(StateDone)
	metrics.SearchQueriesTotal.WithLabelValues(string(it), string(StateDone)).Inc()
	metrics.SearchDuration.WithLabelValues(string(it)).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("search.results", len(resp.Results())),
		attribute.StringSlice("search.degraded", r.degraded),
	)
	return &resp, nil
}

func (s *Service) loadHistory(ctx context.Context, r *run, sessionID string) []conversation.Turn {
	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		metrics.SessionErrorsTotal.WithLabelValues("load").Inc()
		r.degrade(CauseSession)
		r.logger.Warn("Failed to load session history", zap.Error(err))
		return nil
	}
	return history
}

// retrieve runs the dispatched agent. searched is false when the intent maps to no agent.
func (s *Service) retrieve(
	ctx context.Context, r *run, q request.Query,
	it intent.Intent, hints intent.Hints, history []conversation.Turn,
) (retrieval.Result, bool) {
	agent, ok := s.agents.For(it)
	if !ok {
		r.logger.Debug("No agent for intent, skipping retrieval", zap.String("intent", string(it)))
		return retrieval.Result{Items: []evidence.Item{}}, false
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "search.retrieve",
		trace.WithAttributes(attribute.String("collection", string(agent.Collection()))))
	defer span.End()

	res := agent.Retrieve(ctx, retrieval.Input{Query: q, Hints: hints, History: history})
	if res.Items == nil {
		res.Items = []evidence.Item{}
	}
	if res.Degraded != nil {
		span.RecordError(res.Degraded)
		for _, cause := range degradedCauses(res.Degraded) {
			r.degrade(cause)
		}
	}
	span.SetAttributes(attribute.Int("evidence", len(res.Items)), attribute.Bool("direct_match", res.Direct != nil))
	return res, true
}

// degradedCauses lists every failed dependency behind err; a joined error may carry several.
func degradedCauses(err error) []string {
	var causes []string
	if errors.Is(err, domain.ErrCatalogUnavailable) {
		causes = append(causes, CauseCatalog)
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		causes = append(causes, CauseEmbedding)
	}
	if errors.Is(err, domain.ErrRetrieverUnavailable) {
		causes = append(causes, CauseRetriever)
	}
	if len(causes) == 0 {
		causes = append(causes, CauseRetriever)
	}
	return causes
}

func (s *Service) compose(
	ctx context.Context, r *run, q request.Query, it intent.Intent,
	res retrieval.Result, history []conversation.Turn,
) *string {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "search.compose")
	defer span.End()

	out, err := s.composer.Compose(ctx, answer.Input{
		Intent:   it,
		Question: q.Text(),
		Direct:   res.Direct,
		Evidence: res.Items,
		History:  history,
	})
	if err != nil {
		span.RecordError(err)
		r.degrade(CauseAnswer)
		r.logger.Warn("Answer generation failed", zap.Error(err))
		return nil
	}
	return &out
}

// persist records the exchange. A cancelled request records nothing.
func (s *Service) persist(ctx context.Context, r *run, q request.Query, ans *string) {
	if ctx.Err() != nil {
		r.logger.Debug("Request cancelled, session not updated", zap.Error(ctx.Err()))
		return
	}
	if err := s.sessions.Append(ctx, q.SessionID(), conversation.Exchange(q.Text(), ans, s.now())...); err != nil {
		metrics.SessionErrorsTotal.WithLabelValues("append").Inc()
		r.degrade(CauseSession)
		r.logger.Warn("Failed to record session turns", zap.Error(err))
	}
}
