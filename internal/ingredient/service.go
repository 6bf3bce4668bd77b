// Package ingredient は材料管理のドメインロジックを提供する。
package ingredient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/repository"
)

// nameMaxLength は材料名の最大文字数。
const nameMaxLength = 255

// Service は材料管理のサービス層。
// 全ての操作は呼び出しユーザーが所有する材料に限定される。
type Service struct {
	ingRepo repository.IngredientRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(ingRepo repository.IngredientRepository) *Service {
	return &Service{ingRepo: ingRepo}
}

// List はユーザーの材料一覧を名前の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Ingredient, error) {
	ings, err := s.ingRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("材料一覧の取得に失敗しました: %w", err)
	}
	return ings, nil
}

// Create は材料を作成する。
func (s *Service) Create(ctx context.Context, userID, name string) (*model.Ingredient, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	ing := &model.Ingredient{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.ingRepo.Create(ctx, ing); err != nil {
		return nil, fmt.Errorf("材料の作成に失敗しました: %w", err)
	}

	return ing, nil
}

// UpdateName は材料名を変更する。
// 他ユーザーの材料は存在しないものとして扱う。
func (s *Service) UpdateName(ctx context.Context, userID, ingredientID, name string) (*model.Ingredient, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	ing, err := s.findOwned(ctx, userID, ingredientID)
	if err != nil {
		return nil, err
	}

	if err := s.ingRepo.UpdateName(ctx, ingredientID, name); err != nil {
		return nil, fmt.Errorf("材料名の更新に失敗しました: %w", err)
	}

	ing.Name = name
	return ing, nil
}

// Delete は材料を削除する。レシピとの関連も解除される。
func (s *Service) Delete(ctx context.Context, userID, ingredientID string) error {
	if _, err := s.findOwned(ctx, userID, ingredientID); err != nil {
		return err
	}

	if err := s.ingRepo.Delete(ctx, ingredientID); err != nil {
		return fmt.Errorf("材料の削除に失敗しました: %w", err)
	}

	return nil
}

// findOwned は指定IDの材料を取得し、所有者を検証する。
// 存在しない場合と他ユーザーの所有物である場合を区別しない。
func (s *Service) findOwned(ctx context.Context, userID, ingredientID string) (*model.Ingredient, error) {
	ing, err := s.ingRepo.FindByID(ctx, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("材料の取得に失敗しました: %w", err)
	}
	if ing == nil {
		return nil, model.NewIngredientNotFoundError(ingredientID)
	}
	if ing.UserID != userID {
		return nil, model.NewIngredientNotFoundError(ingredientID)
	}
	return ing, nil
}

// validateName は材料名を検証する。
func validateName(name string) error {
	if name == "" {
		return model.NewValidationError("材料名は必須です")
	}
	if len(name) > nameMaxLength {
		return model.NewValidationError(
			fmt.Sprintf("材料名は%d文字以内で指定してください", nameMaxLength))
	}
	return nil
}
