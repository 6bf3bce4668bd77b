package ingredient

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/repository"
)

// --- モック定義 ---

type mockIngredientRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Ingredient, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Ingredient, error)
	createFn       func(ctx context.Context, ing *model.Ingredient) error
	updateNameFn   func(ctx context.Context, id, name string) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockIngredientRepo) FindByID(ctx context.Context, id string) (*model.Ingredient, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockIngredientRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Ingredient, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockIngredientRepo) Create(ctx context.Context, ing *model.Ingredient) error {
	if m.createFn != nil {
		return m.createFn(ctx, ing)
	}
	return nil
}

func (m *mockIngredientRepo) UpdateName(ctx context.Context, id, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, id, name)
	}
	return nil
}

func (m *mockIngredientRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIngredientRepo) CountByIDsForUser(ctx context.Context, userID string, ids []string) (int, error) {
	return len(ids), nil
}

var _ repository.IngredientRepository = (*mockIngredientRepo)(nil)

// --- テスト ---

func TestList_ReturnsOwnIngredients(t *testing.T) {
	ctx := context.Background()

	var gotUserID string
	repo := &mockIngredientRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.Ingredient, error) {
			gotUserID = userID
			return []*model.Ingredient{
				{ID: "i2", UserID: userID, Name: "豆腐"},
				{ID: "i1", UserID: userID, Name: "塩"},
			}, nil
		},
	}

	svc := NewService(repo)

	ings, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if gotUserID != "user-1" {
		t.Errorf("repo queried for user %q, want %q", gotUserID, "user-1")
	}
	if len(ings) != 2 {
		t.Fatalf("got %d ingredients, want 2", len(ings))
	}
}

func TestCreate_ValidName_CreatesIngredient(t *testing.T) {
	ctx := context.Background()

	var created *model.Ingredient
	repo := &mockIngredientRepo{
		createFn: func(ctx context.Context, ing *model.Ingredient) error {
			created = ing
			return nil
		},
	}

	svc := NewService(repo)

	ing, err := svc.Create(ctx, "user-1", "鶏もも肉")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if ing.ID == "" {
		t.Error("expected non-empty ingredient ID")
	}
	if ing.UserID != "user-1" {
		t.Errorf("ingredient userID = %q, want %q", ing.UserID, "user-1")
	}
	if ing.Name != "鶏もも肉" {
		t.Errorf("ingredient name = %q, want %q", ing.Name, "鶏もも肉")
	}
	if created == nil {
		t.Fatal("expected ingredient to be persisted")
	}
}

func TestCreate_EmptyName_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&mockIngredientRepo{})

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

func TestUpdateName_OwnIngredient_UpdatesName(t *testing.T) {
	ctx := context.Background()

	var updatedID, updatedName string
	repo := &mockIngredientRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ingredient, error) {
			return &model.Ingredient{ID: id, UserID: "user-1", Name: "旧名"}, nil
		},
		updateNameFn: func(ctx context.Context, id, name string) error {
			updatedID, updatedName = id, name
			return nil
		},
	}

	svc := NewService(repo)

	ing, err := svc.UpdateName(ctx, "user-1", "i1", "新名")
	if err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}

	if ing.Name != "新名" {
		t.Errorf("ingredient name = %q, want %q", ing.Name, "新名")
	}
	if updatedID != "i1" || updatedName != "新名" {
		t.Errorf("repo updated (%q, %q), want (i1, 新名)", updatedID, updatedName)
	}
}

func TestUpdateName_OtherUsersIngredient_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	repo := &mockIngredientRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ingredient, error) {
			return &model.Ingredient{ID: id, UserID: "other-user", Name: "塩"}, nil
		},
	}

	svc := NewService(repo)

	_, err := svc.UpdateName(ctx, "user-1", "i1", "乗っ取り")
	if err == nil {
		t.Fatal("expected error for other user's ingredient")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeIngredientNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeIngredientNotFound)
	}
}

func TestDelete_OwnIngredient_Deletes(t *testing.T) {
	ctx := context.Background()

	var deletedID string
	repo := &mockIngredientRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ingredient, error) {
			return &model.Ingredient{ID: id, UserID: "user-1", Name: "塩"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}

	svc := NewService(repo)

	if err := svc.Delete(ctx, "user-1", "i1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deletedID != "i1" {
		t.Errorf("deleted ingredient ID = %q, want %q", deletedID, "i1")
	}
}

func TestDelete_MissingIngredient_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&mockIngredientRepo{})

	if err := svc.Delete(ctx, "user-1", "missing"); err == nil {
		t.Fatal("expected error for missing ingredient")
	}
}
