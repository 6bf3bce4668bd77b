package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/recipeman/internal/metrics"
	"github.com/hitoshi/recipeman/internal/middleware"
	"github.com/hitoshi/recipeman/internal/model"
)

// staticTokenFinder はテスト用のトークン検索実装。
type staticTokenFinder struct {
	tokens map[string]*model.APIToken
}

func (f *staticTokenFinder) FindByID(_ context.Context, id string) (*model.APIToken, error) {
	return f.tokens[id], nil
}

var _ middleware.TokenFinder = (*staticTokenFinder)(nil)

// newTestRouter は全サービスをモックにしたルーターを構築するヘルパー。
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	finder := &staticTokenFinder{
		tokens: map[string]*model.APIToken{
			"valid-token": {
				ID:        "valid-token",
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}
	reg := prometheus.NewRegistry()
	return NewRouter(RouterDeps{
		TokenFinder:       finder,
		CORSAllowedOrigin: "http://localhost:3000",
		AuthService:       &mockAuthService{},
		RecipeService:     &mockRecipeService{},
		TagService:        &mockTagService{},
		IngredientService: &mockIngredientService{},
		Metrics:           metrics.NewCollector(reg),
		MetricsGatherer:   reg,
	})
}

func TestRouter_HealthCheck_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q, want to contain status ok", w.Body.String())
	}
}

func TestRouter_Metrics_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// リクエストを処理するとHTTPステータスカウンタとレイテンシヒストグラムが記録され、
// /metricsのスクレイプ結果に現れることを検証する。
func TestRouter_RequestRecordsHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(RouterDeps{
		TokenFinder:       &staticTokenFinder{},
		CORSAllowedOrigin: "http://localhost:3000",
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:       &mockAuthService{},
		RecipeService:     &mockRecipeService{},
		TagService:        &mockTagService{},
		IngredientService: &mockIngredientService{},
		Metrics:           metrics.NewCollector(reg),
		MetricsGatherer:   reg,
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	scrape := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	sw := httptest.NewRecorder()
	router.ServeHTTP(sw, scrape)

	body := sw.Body.String()
	if !strings.Contains(body, `recipeman_http_status_total{status_code="200"} 1`) {
		t.Errorf("metrics output missing http status counter:\n%s", body)
	}
	if !strings.Contains(body, "recipeman_request_latency_seconds_count 1") {
		t.Errorf("metrics output missing latency histogram sample:\n%s", body)
	}
}

func TestRouter_Register_NoAuthRequired(t *testing.T) {
	router := NewRouter(RouterDeps{
		TokenFinder: &staticTokenFinder{},
		AuthService: &mockAuthService{
			registerFn: func(ctx context.Context, email, name, password string) (*model.User, error) {
				return sampleUser("user-1"), nil
			},
		},
		RecipeService:     &mockRecipeService{},
		TagService:        &mockTagService{},
		IngredientService: &mockIngredientService{},
	})

	body := `{"email":"taro@example.com","name":"太郎","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

// 認証必須の全エンドポイントがトークンなしで401を返すこと
func TestRouter_ProtectedEndpoints_Unauthenticated_Return401(t *testing.T) {
	router := newTestRouter(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/recipes"},
		{http.MethodPost, "/api/recipes"},
		{http.MethodGet, "/api/recipes/recipe-1"},
		{http.MethodPut, "/api/recipes/recipe-1"},
		{http.MethodPatch, "/api/recipes/recipe-1"},
		{http.MethodDelete, "/api/recipes/recipe-1"},
		{http.MethodPost, "/api/recipes/recipe-1/image"},
		{http.MethodGet, "/api/tags"},
		{http.MethodPost, "/api/tags"},
		{http.MethodPatch, "/api/tags/tag-1"},
		{http.MethodDelete, "/api/tags/tag-1"},
		{http.MethodGet, "/api/ingredients"},
		{http.MethodPost, "/api/ingredients"},
		{http.MethodPatch, "/api/ingredients/ing-1"},
		{http.MethodDelete, "/api/ingredients/ing-1"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodPatch, "/api/users/me"},
		{http.MethodDelete, "/api/users/me"},
		{http.MethodPost, "/api/users/logout"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_ValidToken_ReachesHandler(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_ExpiredToken_Returns401(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
	req.Header.Set("Authorization", "Bearer unknown-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_CORSHeaders_Present(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestRouter_Preflight_Returns204(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/recipes", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
