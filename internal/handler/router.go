package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/recipeman/internal/metrics"
	"github.com/hitoshi/recipeman/internal/middleware"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	TokenFinder       middleware.TokenFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	AuthService       AuthServiceInterface
	RecipeService     RecipeServiceInterface
	TagService        TagServiceInterface
	IngredientService IngredientServiceInterface

	// MediaDir は/media/配下で配信する画像のディレクトリ。
	MediaDir string

	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter はAPI全体のルーターを構築する。
// 認証不要のエンドポイント（登録・トークン発行・ヘルスチェック・メトリクス・メディア配信）
// 以外は全てトークン認証とレート制限の配下に置く。
func NewRouter(deps RouterDeps) http.Handler {
	userHandler := NewUserHandler(deps.AuthService)
	recipeHandler := NewRecipeHandler(deps.RecipeService, deps.Metrics)
	tagHandler := NewTagHandler(deps.TagService)
	ingredientHandler := NewIngredientHandler(deps.IngredientService)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusスクレイプ用
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// アップロード済み画像の配信
	if deps.MediaDir != "" {
		fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(deps.MediaDir)))
		r.Get("/media/*", fileServer.ServeHTTP)
	}

	// 認証不要のユーザー操作
	r.Post("/api/users", userHandler.Register)
	r.Post("/api/users/token", userHandler.IssueToken)

	// 認証必須のエンドポイント
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenFinder))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateMe)
			r.Delete("/me", userHandler.Withdraw)
			r.Post("/logout", userHandler.Logout)
		})

		r.Route("/api/recipes", func(r chi.Router) {
			r.Get("/", recipeHandler.List)
			r.Post("/", recipeHandler.Create)
			r.Get("/{id}", recipeHandler.Get)
			r.Put("/{id}", recipeHandler.Replace)
			r.Patch("/{id}", recipeHandler.Update)
			r.Delete("/{id}", recipeHandler.Delete)

			// 画像アップロードは一般より厳しいレート制限を適用する
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.UploadMiddleware()).Post("/{id}/image", recipeHandler.UploadImage)
			} else {
				r.Post("/{id}/image", recipeHandler.UploadImage)
			}
		})

		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", tagHandler.List)
			r.Post("/", tagHandler.Create)
			r.Patch("/{id}", tagHandler.Update)
			r.Delete("/{id}", tagHandler.Delete)
		})

		r.Route("/api/ingredients", func(r chi.Router) {
			r.Get("/", ingredientHandler.List)
			r.Post("/", ingredientHandler.Create)
			r.Patch("/{id}", ingredientHandler.Update)
			r.Delete("/{id}", ingredientHandler.Delete)
		})
	})

	return r
}
