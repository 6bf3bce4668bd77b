// Package recipe はレシピ管理のドメインロジックを提供する。
package recipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/repository"
)

// 入力値の上限
const (
	titleMaxLength = 255
	linkMaxLength  = 255
	priceMax       = 999.99 // NUMERIC(5,2)の上限
)

// ImageStore はレシピ画像の保存先インターフェース。
type ImageStore interface {
	// Save は画像データを検証して保存し、相対パスを返す。
	// 画像として解釈できないデータにはInvalidImageエラーを返す。
	Save(r io.Reader) (string, error)
	// Remove は保存済み画像を削除する。
	Remove(path string) error
}

// Sanitizer はレシピ説明文のHTMLサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// CreateInput はレシピ作成・全置換の入力。
type CreateInput struct {
	Title         string
	TimeMinutes   int
	Price         float64
	Link          string
	Description   string
	TagIDs        []string
	IngredientIDs []string
}

// UpdateInput は部分更新の入力。nilのフィールドは変更しない。
// TagIDs / IngredientIDs はnilなら変更せず、非nil（空を含む）なら集合を置き換える。
type UpdateInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *float64
	Link          *string
	Description   *string
	TagIDs        []string
	IngredientIDs []string
}

// Service はレシピ管理のサービス層。
// 一覧・取得・作成・更新・削除・画像添付のビジネスロジックを提供する。
// 全ての操作は呼び出しユーザーが所有するデータに限定される。
type Service struct {
	recipeRepo repository.RecipeRepository
	tagRepo    repository.TagRepository
	ingRepo    repository.IngredientRepository
	images     ImageStore
	sanitizer  Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	recipeRepo repository.RecipeRepository,
	tagRepo repository.TagRepository,
	ingRepo repository.IngredientRepository,
	images ImageStore,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		recipeRepo: recipeRepo,
		tagRepo:    tagRepo,
		ingRepo:    ingRepo,
		images:     images,
		sanitizer:  sanitizer,
	}
}

// List はユーザーのレシピ一覧を作成日時の降順で返す。
// filterのID集合が指定された場合、タグ・材料それぞれについて
// いずれかのIDを持つレシピに絞り込む（集合内はOR、種別間はAND）。
func (s *Service) List(ctx context.Context, userID string, filter model.RecipeFilter) ([]*model.Recipe, error) {
	recipes, err := s.recipeRepo.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("レシピ一覧の取得に失敗しました: %w", err)
	}
	return recipes, nil
}

// Get は指定IDのレシピを取得する。
// 他ユーザーのレシピは存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, recipeID string) (*model.Recipe, error) {
	return s.findOwned(ctx, userID, recipeID)
}

// Create はレシピを作成する。
// タグ・材料のID集合は全て呼び出しユーザーの所有物でなければならない。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Recipe, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	tagIDs := dedupe(input.TagIDs)
	ingIDs := dedupe(input.IngredientIDs)
	if err := s.validateAssociations(ctx, userID, tagIDs, ingIDs); err != nil {
		return nil, err
	}

	now := time.Now()
	recipe := &model.Recipe{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       input.Title,
		TimeMinutes: input.TimeMinutes,
		Price:       input.Price,
		Link:        input.Link,
		Description: s.sanitizeDescription(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.recipeRepo.Create(ctx, recipe, tagIDs, ingIDs); err != nil {
		return nil, fmt.Errorf("レシピの作成に失敗しました: %w", err)
	}

	slog.Info("recipe created",
		slog.String("user_id", userID),
		slog.String("recipe_id", recipe.ID),
	)

	return s.findOwned(ctx, userID, recipe.ID)
}

// Update はレシピを部分更新する。
// 指定されなかったフィールドは変更せず、タグ・材料のID集合が
// 指定された場合のみ既存の集合を置き換える。
func (s *Service) Update(ctx context.Context, userID, recipeID string, input UpdateInput) (*model.Recipe, error) {
	recipe, err := s.findOwned(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		recipe.Title = *input.Title
	}
	if input.TimeMinutes != nil {
		recipe.TimeMinutes = *input.TimeMinutes
	}
	if input.Price != nil {
		recipe.Price = *input.Price
	}
	if input.Link != nil {
		recipe.Link = *input.Link
	}
	if input.Description != nil {
		recipe.Description = s.sanitizeDescription(*input.Description)
	}

	if err := s.validateInput(CreateInput{
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price,
		Link:        recipe.Link,
	}); err != nil {
		return nil, err
	}

	tagIDs := dedupe(input.TagIDs)
	ingIDs := dedupe(input.IngredientIDs)
	if err := s.validateAssociations(ctx, userID, tagIDs, ingIDs); err != nil {
		return nil, err
	}

	if err := s.recipeRepo.Update(ctx, recipe); err != nil {
		return nil, fmt.Errorf("レシピの更新に失敗しました: %w", err)
	}

	if input.TagIDs != nil {
		if err := s.recipeRepo.ReplaceTags(ctx, recipeID, tagIDs); err != nil {
			return nil, fmt.Errorf("タグ関連の置換に失敗しました: %w", err)
		}
	}
	if input.IngredientIDs != nil {
		if err := s.recipeRepo.ReplaceIngredients(ctx, recipeID, ingIDs); err != nil {
			return nil, fmt.Errorf("材料関連の置換に失敗しました: %w", err)
		}
	}

	return s.findOwned(ctx, userID, recipeID)
}

// Replace はレシピを全置換する。
// 全フィールドを入力値で上書きし、省略されたタグ・材料の集合は空になる。
func (s *Service) Replace(ctx context.Context, userID, recipeID string, input CreateInput) (*model.Recipe, error) {
	recipe, err := s.findOwned(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	tagIDs := dedupe(input.TagIDs)
	ingIDs := dedupe(input.IngredientIDs)
	if err := s.validateAssociations(ctx, userID, tagIDs, ingIDs); err != nil {
		return nil, err
	}

	recipe.Title = input.Title
	recipe.TimeMinutes = input.TimeMinutes
	recipe.Price = input.Price
	recipe.Link = input.Link
	recipe.Description = s.sanitizeDescription(input.Description)

	if err := s.recipeRepo.Update(ctx, recipe); err != nil {
		return nil, fmt.Errorf("レシピの更新に失敗しました: %w", err)
	}
	if err := s.recipeRepo.ReplaceTags(ctx, recipeID, tagIDs); err != nil {
		return nil, fmt.Errorf("タグ関連の置換に失敗しました: %w", err)
	}
	if err := s.recipeRepo.ReplaceIngredients(ctx, recipeID, ingIDs); err != nil {
		return nil, fmt.Errorf("材料関連の置換に失敗しました: %w", err)
	}

	return s.findOwned(ctx, userID, recipeID)
}

// Delete はレシピを削除する。添付画像ファイルも削除する。
func (s *Service) Delete(ctx context.Context, userID, recipeID string) error {
	recipe, err := s.findOwned(ctx, userID, recipeID)
	if err != nil {
		return err
	}

	if err := s.recipeRepo.Delete(ctx, recipeID); err != nil {
		return fmt.Errorf("レシピの削除に失敗しました: %w", err)
	}

	if recipe.ImagePath != "" && s.images != nil {
		if err := s.images.Remove(recipe.ImagePath); err != nil {
			// ファイル削除の失敗は操作を妨げない。孤児ファイルはワーカーが回収する。
			slog.Warn("画像ファイルの削除に失敗しました",
				slog.String("path", recipe.ImagePath),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("recipe deleted",
		slog.String("user_id", userID),
		slog.String("recipe_id", recipeID),
	)

	return nil
}

// AttachImage はレシピに画像を添付する。
// 既存の画像がある場合は新しい画像で置き換え、古いファイルを削除する。
func (s *Service) AttachImage(ctx context.Context, userID, recipeID string, r io.Reader) (*model.Recipe, error) {
	recipe, err := s.findOwned(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}

	newPath, err := s.images.Save(r)
	if err != nil {
		return nil, err
	}

	if err := s.recipeRepo.UpdateImagePath(ctx, recipeID, newPath); err != nil {
		// DB更新に失敗した場合は保存したファイルを残さない
		if removeErr := s.images.Remove(newPath); removeErr != nil {
			slog.Warn("画像ファイルの後始末に失敗しました",
				slog.String("path", newPath),
				slog.String("error", removeErr.Error()),
			)
		}
		return nil, fmt.Errorf("画像パスの更新に失敗しました: %w", err)
	}

	if recipe.ImagePath != "" {
		if err := s.images.Remove(recipe.ImagePath); err != nil {
			slog.Warn("旧画像ファイルの削除に失敗しました",
				slog.String("path", recipe.ImagePath),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("recipe image attached",
		slog.String("user_id", userID),
		slog.String("recipe_id", recipeID),
	)

	return s.findOwned(ctx, userID, recipeID)
}

// findOwned は指定IDのレシピを取得し、所有者を検証する。
// 存在しない場合と他ユーザーの所有物である場合を区別しない。
func (s *Service) findOwned(ctx context.Context, userID, recipeID string) (*model.Recipe, error) {
	recipe, err := s.recipeRepo.FindByID(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}
	if recipe == nil {
		return nil, model.NewRecipeNotFoundError(recipeID)
	}
	if recipe.UserID != userID {
		return nil, model.NewRecipeNotFoundError(recipeID)
	}
	return recipe, nil
}

// validateInput はレシピの基本フィールドを検証する。
func (s *Service) validateInput(input CreateInput) error {
	if input.Title == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if len(input.Title) > titleMaxLength {
		return model.NewValidationError(
			fmt.Sprintf("タイトルは%d文字以内で指定してください", titleMaxLength))
	}
	if input.TimeMinutes < 1 {
		return model.NewValidationError("調理時間は1分以上で指定してください")
	}
	if input.Price < 0 {
		return model.NewValidationError("価格は0以上で指定してください")
	}
	if input.Price > priceMax {
		return model.NewValidationError(
			fmt.Sprintf("価格は%.2f以下で指定してください", priceMax))
	}
	if len(input.Link) > linkMaxLength {
		return model.NewValidationError(
			fmt.Sprintf("リンクは%d文字以内で指定してください", linkMaxLength))
	}
	return nil
}

// validateAssociations はタグ・材料のID集合が全て呼び出しユーザーの
// 所有物であることを検証する。所有しないIDが含まれる場合は入力値エラー。
func (s *Service) validateAssociations(ctx context.Context, userID string, tagIDs, ingIDs []string) error {
	if len(tagIDs) > 0 {
		count, err := s.tagRepo.CountByIDsForUser(ctx, userID, tagIDs)
		if err != nil {
			return fmt.Errorf("タグ所有数の確認に失敗しました: %w", err)
		}
		if count != len(tagIDs) {
			return model.NewValidationError("指定されたタグIDに存在しないものが含まれています")
		}
	}
	if len(ingIDs) > 0 {
		count, err := s.ingRepo.CountByIDsForUser(ctx, userID, ingIDs)
		if err != nil {
			return fmt.Errorf("材料所有数の確認に失敗しました: %w", err)
		}
		if count != len(ingIDs) {
			return model.NewValidationError("指定された材料IDに存在しないものが含まれています")
		}
	}
	return nil
}

// sanitizeDescription は説明文をサニタイズする。
func (s *Service) sanitizeDescription(raw string) string {
	if s.sanitizer == nil {
		return raw
	}
	return s.sanitizer.Sanitize(raw)
}

// dedupe はID集合の重複を取り除く。入力順を保持し、nilはnilのまま返す。
func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
