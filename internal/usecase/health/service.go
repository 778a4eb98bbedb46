package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; searches still answer.
	Degraded Status = "degraded"
	// Unhealthy indicates the primary store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckMissing indicates a vector index that has not been provisioned.
	CheckMissing CheckResult = "missing"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	indexes   IndexChecker
	names     map[string]string
	embedding EmbeddingChecker
	catalog   DBPinger
}

// Option configures optional checks.
type Option func(*Service)

// WithIndexes checks that each named collection index exists.
func WithIndexes(ic IndexChecker, names map[string]string) Option {
	return func(s *Service) {
		s.indexes = ic
		s.names = names
	}
}

// WithEmbedding checks the embedding provider.
func WithEmbedding(ec EmbeddingChecker) Option {
	return func(s *Service) { s.embedding = ec }
}

// WithCatalog checks a separate catalog database.
func WithCatalog(p DBPinger) Option {
	return func(s *Service) { s.catalog = p }
}

// New creates a Service.
func New(db DBPinger, opts ...Option) *Service {
	s := &Service{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := s.db.Ping(ctx) == nil
	checks["database"] = result(dbOK)

	if s.indexes != nil && dbOK {
		collections := make([]string, 0, len(s.names))
		for c := range s.names {
			collections = append(collections, c)
		}
		sort.Strings(collections)

		for _, c := range collections {
			exists, err := s.indexes.IndexExists(ctx, s.names[c])
			switch {
			case err != nil:
				checks["index:"+c] = CheckError
			case !exists:
				checks["index:"+c] = CheckMissing
			default:
				checks["index:"+c] = CheckOK
			}
		}
	}

	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx) == nil)
	}
	if s.catalog != nil {
		checks["catalog"] = result(s.catalog.Ping(ctx) == nil)
	}

	status := Healthy
	if !dbOK {
		status = Unhealthy
	} else {
		for _, v := range checks {
			if v != CheckOK {
				status = Degraded
				break
			}
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
