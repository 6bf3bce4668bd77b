package tag

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/repository"
)

// --- モック定義 ---

type mockTagRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Tag, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Tag, error)
	createFn       func(ctx context.Context, tag *model.Tag) error
	updateNameFn   func(ctx context.Context, id, name string) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockTagRepo) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTagRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Tag, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	if m.createFn != nil {
		return m.createFn(ctx, tag)
	}
	return nil
}

func (m *mockTagRepo) UpdateName(ctx context.Context, id, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, id, name)
	}
	return nil
}

func (m *mockTagRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockTagRepo) CountByIDsForUser(ctx context.Context, userID string, ids []string) (int, error) {
	return len(ids), nil
}

var _ repository.TagRepository = (*mockTagRepo)(nil)

// --- テスト ---

func TestList_ReturnsOwnTags(t *testing.T) {
	ctx := context.Background()

	var gotUserID string
	repo := &mockTagRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.Tag, error) {
			gotUserID = userID
			return []*model.Tag{
				{ID: "t2", UserID: userID, Name: "和食"},
				{ID: "t1", UserID: userID, Name: "デザート"},
			}, nil
		},
	}

	svc := NewService(repo)

	tags, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if gotUserID != "user-1" {
		t.Errorf("repo queried for user %q, want %q", gotUserID, "user-1")
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
}

func TestCreate_ValidName_CreatesTag(t *testing.T) {
	ctx := context.Background()

	var created *model.Tag
	repo := &mockTagRepo{
		createFn: func(ctx context.Context, tag *model.Tag) error {
			created = tag
			return nil
		},
	}

	svc := NewService(repo)

	tag, err := svc.Create(ctx, "user-1", "ビーガン")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if tag.ID == "" {
		t.Error("expected non-empty tag ID")
	}
	if tag.UserID != "user-1" {
		t.Errorf("tag userID = %q, want %q", tag.UserID, "user-1")
	}
	if tag.Name != "ビーガン" {
		t.Errorf("tag name = %q, want %q", tag.Name, "ビーガン")
	}
	if created == nil {
		t.Fatal("expected tag to be persisted")
	}
}

func TestCreate_EmptyName_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&mockTagRepo{})

	_, err := svc.Create(ctx, "user-1", "")
	if err == nil {
		t.Fatal("expected validation error for empty name")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeValidationFailed)
	}
}

func TestUpdateName_OwnTag_UpdatesName(t *testing.T) {
	ctx := context.Background()

	var updatedID, updatedName string
	repo := &mockTagRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Tag, error) {
			return &model.Tag{ID: id, UserID: "user-1", Name: "旧名"}, nil
		},
		updateNameFn: func(ctx context.Context, id, name string) error {
			updatedID, updatedName = id, name
			return nil
		},
	}

	svc := NewService(repo)

	tag, err := svc.UpdateName(ctx, "user-1", "t1", "新名")
	if err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}

	if tag.Name != "新名" {
		t.Errorf("tag name = %q, want %q", tag.Name, "新名")
	}
	if updatedID != "t1" || updatedName != "新名" {
		t.Errorf("repo updated (%q, %q), want (t1, 新名)", updatedID, updatedName)
	}
}

func TestUpdateName_OtherUsersTag_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	repo := &mockTagRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Tag, error) {
			return &model.Tag{ID: id, UserID: "other-user", Name: "和食"}, nil
		},
	}

	svc := NewService(repo)

	_, err := svc.UpdateName(ctx, "user-1", "t1", "乗っ取り")
	if err == nil {
		t.Fatal("expected error for other user's tag")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeTagNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeTagNotFound)
	}
}

func TestDelete_OwnTag_Deletes(t *testing.T) {
	ctx := context.Background()

	var deletedID string
	repo := &mockTagRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Tag, error) {
			return &model.Tag{ID: id, UserID: "user-1", Name: "和食"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}

	svc := NewService(repo)

	if err := svc.Delete(ctx, "user-1", "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deletedID != "t1" {
		t.Errorf("deleted tag ID = %q, want %q", deletedID, "t1")
	}
}

func TestDelete_MissingTag_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&mockTagRepo{})

	if err := svc.Delete(ctx, "user-1", "missing"); err == nil {
		t.Fatal("expected error for missing tag")
	}
}
