// Package tag はタグ管理のドメインロジックを提供する。
package tag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/repository"
)

// nameMaxLength はタグ名の最大文字数。
const nameMaxLength = 255

// Service はタグ管理のサービス層。
// 全ての操作は呼び出しユーザーが所有するタグに限定される。
type Service struct {
	tagRepo repository.TagRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tagRepo repository.TagRepository) *Service {
	return &Service{tagRepo: tagRepo}
}

// List はユーザーのタグ一覧を名前の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Tag, error) {
	tags, err := s.tagRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// Create はタグを作成する。
func (s *Service) Create(ctx context.Context, userID, name string) (*model.Tag, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	tag := &model.Tag{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.tagRepo.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}

	return tag, nil
}

// UpdateName はタグ名を変更する。
// 他ユーザーのタグは存在しないものとして扱う。
func (s *Service) UpdateName(ctx context.Context, userID, tagID, name string) (*model.Tag, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	tag, err := s.findOwned(ctx, userID, tagID)
	if err != nil {
		return nil, err
	}

	if err := s.tagRepo.UpdateName(ctx, tagID, name); err != nil {
		return nil, fmt.Errorf("タグ名の更新に失敗しました: %w", err)
	}

	tag.Name = name
	return tag, nil
}

// Delete はタグを削除する。レシピとの関連も解除される。
func (s *Service) Delete(ctx context.Context, userID, tagID string) error {
	if _, err := s.findOwned(ctx, userID, tagID); err != nil {
		return err
	}

	if err := s.tagRepo.Delete(ctx, tagID); err != nil {
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}

	return nil
}

// findOwned は指定IDのタグを取得し、所有者を検証する。
// 存在しない場合と他ユーザーの所有物である場合を区別しない。
func (s *Service) findOwned(ctx context.Context, userID, tagID string) (*model.Tag, error) {
	tag, err := s.tagRepo.FindByID(ctx, tagID)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if tag == nil {
		return nil, model.NewTagNotFoundError(tagID)
	}
	if tag.UserID != userID {
		return nil, model.NewTagNotFoundError(tagID)
	}
	return tag, nil
}

// validateName はタグ名を検証する。
func validateName(name string) error {
	if name == "" {
		return model.NewValidationError("タグ名は必須です")
	}
	if len(name) > nameMaxLength {
		return model.NewValidationError(
			fmt.Sprintf("タグ名は%d文字以内で指定してください", nameMaxLength))
	}
	return nil
}
