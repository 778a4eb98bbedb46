package chi

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
)

type mockSearcher struct {
	searchFn func(ctx context.Context, q request.Query) (*result.Response, error)
	last     request.Query
	calls    int
}

func (m *mockSearcher) Search(ctx context.Context, q request.Query) (*result.Response, error) {
	m.calls++
	m.last = q
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	resp := result.New(nil, nil, nil, "PRODUCT", nil)
	return &resp, nil
}

type mockHistory struct {
	historyFn func(ctx context.Context, sessionID string) ([]conversation.Turn, error)
}

func (m *mockHistory) History(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, sessionID)
	}
	return nil, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type testDeps struct {
	search  *mockSearcher
	history *mockHistory
	health  *mockHealth
}

func newTestRouter(t *testing.T, cfg RouterConfig) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		search:  &mockSearcher{},
		history: &mockHistory{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	srv := NewServer(deps.search, deps.history, deps.health, zap.NewNop())
	return NewRouter(srv, cfg, zap.NewNop()), deps
}
