package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/recipeman/internal/middleware"
	"github.com/hitoshi/recipeman/internal/model"
)

// IngredientServiceInterface は材料ハンドラーが必要とするサービスインターフェース。
type IngredientServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Ingredient, error)
	Create(ctx context.Context, userID, name string) (*model.Ingredient, error)
	UpdateName(ctx context.Context, userID, ingredientID, name string) (*model.Ingredient, error)
	Delete(ctx context.Context, userID, ingredientID string) error
}

// IngredientHandler は材料管理のHTTPハンドラー。
type IngredientHandler struct {
	service IngredientServiceInterface
}

// NewIngredientHandler はIngredientHandlerを生成する。
func NewIngredientHandler(service IngredientServiceInterface) *IngredientHandler {
	return &IngredientHandler{service: service}
}

// List は材料一覧を返す。
// GET /api/ingredients
func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	ingredients, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]ingredientResponse, 0, len(ingredients))
	for _, ing := range ingredients {
		responses = append(responses, ingredientResponse{ID: ing.ID, Name: ing.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Create は材料を作成する。
// POST /api/ingredients
func (h *IngredientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	ing, err := h.service.Create(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ingredientResponse{ID: ing.ID, Name: ing.Name})
}

// Update は材料名を変更する。
// PATCH /api/ingredients/{id}
func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	ingredientID := chi.URLParam(r, "id")
	ing, err := h.service.UpdateName(r.Context(), userID, ingredientID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ingredientResponse{ID: ing.ID, Name: ing.Name})
}

// Delete は材料を削除する。
// DELETE /api/ingredients/{id}
func (h *IngredientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	ingredientID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, ingredientID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
