// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/recipeman/internal/model"
)

// bearerPrefix はAuthorizationヘッダーのスキーム接頭辞。
const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// tokenIDContextKey はリクエストコンテキストにトークンIDを格納するためのキー。
// ログアウト処理で現在のトークンを失効させるために使用する。
var tokenIDContextKey = contextKey("token_id")

// TokenFinder はAPIトークンの検索に必要なインターフェース。
// repository.TokenRepositoryの部分集合として定義する。
type TokenFinder interface {
	FindByID(ctx context.Context, id string) (*model.APIToken, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。認証済みユーザーIDとトークンIDをリクエスト
// コンテキストに注入する。未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(tokenFinder TokenFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			tokenID := strings.TrimPrefix(header, bearerPrefix)
			if tokenID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンの有効性を検証（期限切れはリポジトリがnilを返す）
			token, err := tokenFinder.FindByID(r.Context(), tokenID)
			if err != nil {
				slog.Error("failed to find api token",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if token == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 認証済みユーザーIDとトークンIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, token.UserID)
			ctx = context.WithValue(ctx, tokenIDContextKey, token.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// TokenIDFromContext はリクエストコンテキストからトークンIDを取得する。
func TokenIDFromContext(ctx context.Context) (string, error) {
	tokenID, ok := ctx.Value(tokenIDContextKey).(string)
	if !ok || tokenID == "" {
		return "", fmt.Errorf("token ID not found in context")
	}
	return tokenID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithTokenID はコンテキストにトークンIDを注入する。
func ContextWithTokenID(ctx context.Context, tokenID string) context.Context {
	return context.WithValue(ctx, tokenIDContextKey, tokenID)
}
