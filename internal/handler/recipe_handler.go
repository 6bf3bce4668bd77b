package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/recipeman/internal/metrics"
	"github.com/hitoshi/recipeman/internal/middleware"
	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/recipe"
)

// maxImageUploadMemory はマルチパート解析時にメモリへ保持する上限。
const maxImageUploadMemory = 8 << 20 // 8MiB

// RecipeServiceInterface はレシピハンドラーが必要とするサービスインターフェース。
type RecipeServiceInterface interface {
	// List はユーザーのレシピ一覧をフィルタ付きで返す。
	List(ctx context.Context, userID string, filter model.RecipeFilter) ([]*model.Recipe, error)
	// Get は指定IDのレシピを取得する。
	Get(ctx context.Context, userID, recipeID string) (*model.Recipe, error)
	// Create はレシピを作成する。
	Create(ctx context.Context, userID string, input recipe.CreateInput) (*model.Recipe, error)
	// Update はレシピを部分更新する。
	Update(ctx context.Context, userID, recipeID string, input recipe.UpdateInput) (*model.Recipe, error)
	// Replace はレシピを全置換する。
	Replace(ctx context.Context, userID, recipeID string, input recipe.CreateInput) (*model.Recipe, error)
	// Delete はレシピを削除する。
	Delete(ctx context.Context, userID, recipeID string) error
	// AttachImage はレシピに画像を添付する。
	AttachImage(ctx context.Context, userID, recipeID string, r io.Reader) (*model.Recipe, error)
}

// RecipeHandler はレシピ管理のHTTPハンドラー。
type RecipeHandler struct {
	service RecipeServiceInterface
	metrics metrics.MetricsCollector
}

// NewRecipeHandler はRecipeHandlerを生成する。
// collectorはnilでもよい。
func NewRecipeHandler(service RecipeServiceInterface, collector metrics.MetricsCollector) *RecipeHandler {
	return &RecipeHandler{service: service, metrics: collector}
}

// createRecipeRequest はレシピ作成・全置換リクエストのボディ。
type createRecipeRequest struct {
	Title         string   `json:"title"`
	TimeMinutes   int      `json:"time_minutes"`
	Price         float64  `json:"price"`
	Link          string   `json:"link"`
	Description   string   `json:"description"`
	TagIDs        []string `json:"tag_ids"`
	IngredientIDs []string `json:"ingredient_ids"`
}

// updateRecipeRequest は部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateRecipeRequest struct {
	Title         *string  `json:"title"`
	TimeMinutes   *int     `json:"time_minutes"`
	Price         *float64 `json:"price"`
	Link          *string  `json:"link"`
	Description   *string  `json:"description"`
	TagIDs        []string `json:"tag_ids"`
	IngredientIDs []string `json:"ingredient_ids"`
}

// tagResponse はタグのAPIレスポンス。
type tagResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ingredientResponse は材料のAPIレスポンス。
type ingredientResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// recipeResponse はレシピのAPIレスポンス。
type recipeResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	TimeMinutes int                  `json:"time_minutes"`
	Price       float64              `json:"price"`
	Link        string               `json:"link"`
	Description string               `json:"description"`
	ImageURL    string               `json:"image_url"`
	Tags        []tagResponse        `json:"tags"`
	Ingredients []ingredientResponse `json:"ingredients"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// List はレシピ一覧を返す。
// GET /api/recipes?tags=id1,id2&ingredients=id3
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	filter, apiErr := parseRecipeFilter(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	recipes, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]recipeResponse, 0, len(recipes))
	for _, rcp := range recipes {
		responses = append(responses, toRecipeResponse(rcp))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Get は指定IDのレシピを返す。
// GET /api/recipes/{id}
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	recipeID := chi.URLParam(r, "id")
	rcp, err := h.service.Get(r.Context(), userID, recipeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecipeResponse(rcp))
}

// Create はレシピを作成する。
// POST /api/recipes
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	rcp, err := h.service.Create(r.Context(), userID, toCreateInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRecipeCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toRecipeResponse(rcp))
}

// Replace はレシピを全置換する。省略されたタグ・材料の集合は空になる。
// PUT /api/recipes/{id}
func (h *RecipeHandler) Replace(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	recipeID := chi.URLParam(r, "id")
	rcp, err := h.service.Replace(r.Context(), userID, recipeID, toCreateInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecipeResponse(rcp))
}

// Update はレシピを部分更新する。
// PATCH /api/recipes/{id}
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	recipeID := chi.URLParam(r, "id")
	rcp, err := h.service.Update(r.Context(), userID, recipeID, recipe.UpdateInput{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		Description:   req.Description,
		TagIDs:        req.TagIDs,
		IngredientIDs: req.IngredientIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecipeResponse(rcp))
}

// Delete はレシピを削除する。
// DELETE /api/recipes/{id}
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	recipeID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, recipeID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage はレシピに画像を添付する。
// POST /api/recipes/{id}/image （multipart/form-data、フィールド名 image）
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("multipart/form-data形式でアップロードしてください"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("imageフィールドにファイルを指定してください"))
		return
	}
	defer file.Close()

	recipeID := chi.URLParam(r, "id")
	rcp, err := h.service.AttachImage(r.Context(), userID, recipeID, file)
	if err != nil {
		if h.metrics != nil && isImageRejection(err) {
			h.metrics.RecordImageRejected()
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordImageUploaded()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecipeResponse(rcp))
}

// parseRecipeFilter はクエリパラメータからフィルタ条件を組み立てる。
// tags / ingredients はカンマ区切りのID一覧で、空要素は不正とみなす。
func parseRecipeFilter(r *http.Request) (model.RecipeFilter, *model.APIError) {
	var filter model.RecipeFilter

	tagIDs, ok := parseIDList(r.URL.Query().Get("tags"))
	if !ok {
		return filter, model.NewInvalidFilterError("tags")
	}
	ingredientIDs, ok := parseIDList(r.URL.Query().Get("ingredients"))
	if !ok {
		return filter, model.NewInvalidFilterError("ingredients")
	}

	filter.TagIDs = tagIDs
	filter.IngredientIDs = ingredientIDs
	return filter, nil
}

// parseIDList はカンマ区切りのID一覧を分解する。
// パラメータ未指定はnil、空要素を含む場合はfalseを返す。
func parseIDList(raw string) ([]string, bool) {
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, false
		}
		ids = append(ids, p)
	}
	return ids, true
}

// isImageRejection は画像として不正なアップロードのエラーか判定する。
func isImageRejection(err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == model.ErrCodeInvalidImage || apiErr.Code == model.ErrCodeValidationFailed
}

// toCreateInput はリクエストボディをサービス層の入力に変換する。
func toCreateInput(req createRecipeRequest) recipe.CreateInput {
	return recipe.CreateInput{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		Description:   req.Description,
		TagIDs:        req.TagIDs,
		IngredientIDs: req.IngredientIDs,
	}
}

// toRecipeResponse はmodel.RecipeからAPIレスポンスに変換する。
func toRecipeResponse(rcp *model.Recipe) recipeResponse {
	tags := make([]tagResponse, 0, len(rcp.Tags))
	for _, t := range rcp.Tags {
		tags = append(tags, tagResponse{ID: t.ID, Name: t.Name})
	}
	ingredients := make([]ingredientResponse, 0, len(rcp.Ingredients))
	for _, ing := range rcp.Ingredients {
		ingredients = append(ingredients, ingredientResponse{ID: ing.ID, Name: ing.Name})
	}

	imageURL := ""
	if rcp.ImagePath != "" {
		imageURL = "/media/" + rcp.ImagePath
	}

	return recipeResponse{
		ID:          rcp.ID,
		Title:       rcp.Title,
		TimeMinutes: rcp.TimeMinutes,
		Price:       rcp.Price,
		Link:        rcp.Link,
		Description: rcp.Description,
		ImageURL:    imageURL,
		Tags:        tags,
		Ingredients: ingredients,
		CreatedAt:   rcp.CreatedAt,
		UpdatedAt:   rcp.UpdatedAt,
	}
}
