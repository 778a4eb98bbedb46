package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
	"github.com/kailas-cloud/shopsearch/internal/version"
)

const maxBodyBytes = 64 << 10

// Searcher answers one shopping question.
type Searcher interface {
	Search(ctx context.Context, q request.Query) (*result.Response, error)
}

// HistoryReader reads a session transcript.
type HistoryReader interface {
	History(ctx context.Context, sessionID string) ([]conversation.Turn, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers of the search API.
type Server struct {
	search        Searcher
	sessions      HistoryReader
	health        HealthChecker
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, sessions HistoryReader, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		search:        search,
		sessions:      sessions,
		health:        health,
		validate:      newValidator(),
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query     string   `json:"query" validate:"required"`
	SessionID string   `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Limit     *int     `json:"limit,omitempty" validate:"omitempty,min=1"`
	ProductID string   `json:"product_id,omitempty" validate:"omitempty,max=64"`
	MaxPrice  *float64 `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	MinRating *float64 `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// EvidenceItem is one retrieved chunk in a search reply.
type EvidenceItem struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Score      float64           `json:"score"`
	Payload    map[string]string `json:"payload"`
}

// SearchResponse is the body of a successful POST /search.
type SearchResponse struct {
	SessionID string           `json:"session_id"`
	QueryType string           `json:"query_type"`
	Answer    *string          `json:"llm_answer"`
	Direct    *product.Product `json:"direct_product_result"`
	Results   []EvidenceItem   `json:"results"`
	Degraded  []string         `json:"degraded,omitempty"`
}

// HistoryResponse is the body of GET /sessions/{session_id}/history.
type HistoryResponse struct {
	SessionID string              `json:"session_id"`
	Turns     []conversation.Turn `json:"turns"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return
	}

	filters, err := filtersFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	limit := 0
	if req.Limit != nil {
		limit = *req.Limit
	}

	q, err := request.New(req.Query, sessionID, limit, filters)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	q = q.WithProduct(req.ProductID)

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(sessionID, resp))
}

// SessionHistory handles GET /sessions/{session_id}/history.
func (s *Server) SessionHistory(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	err := runtime.BindStyledParameterWithOptions("simple", "session_id", gochi.URLParam(r, "session_id"),
		&sessionID, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid session_id: "+err.Error())
		return
	}
	if sessionID == "" || len(sessionID) > request.MaxSessionIDLength {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "session_id must be 1-128 characters")
		return
	}

	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid limit: "+err.Error())
		return
	}
	if limit != nil && *limit <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "limit must be positive")
		return
	}

	turns, err := s.sessions.History(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	if limit != nil {
		turns = conversation.Last(turns, *limit)
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: sessionID, Turns: turns})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.String(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err.Error()
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// filtersFromRequest maps the catalog filters onto product index fields.
func filtersFromRequest(req SearchRequest) (filter.Expression, error) {
	var conds []filter.Condition
	if req.MaxPrice != nil {
		c, err := filter.Between("price", nil, req.MaxPrice)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("max_price: %w", err)
		}
		conds = append(conds, c)
	}
	if req.MinRating != nil {
		c, err := filter.Between("rating", req.MinRating, nil)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("min_rating: %w", err)
		}
		conds = append(conds, c)
	}
	expr, err := filter.And(conds...)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("filters: %w", err)
	}
	return expr, nil
}

func searchResponseFrom(sessionID string, resp *result.Response) SearchResponse {
	items := make([]EvidenceItem, len(resp.Results()))
	for i, it := range resp.Results() {
		items[i] = EvidenceItem{
			ID:         it.ID(),
			Collection: string(it.Collection()),
			Score:      it.Score(),
			Payload:    it.Payload(),
		}
	}

	return SearchResponse{
		SessionID: sessionID,
		QueryType: string(resp.Intent()),
		Answer:    resp.Answer(),
		Direct:    resp.Direct(),
		Results:   items,
		Degraded:  resp.Degraded(),
	}
}
