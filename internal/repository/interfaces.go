// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/recipeman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーの名前とパスワードハッシュを更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するapi_tokens、tags、ingredients、recipesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// TokenRepository はAPIトークンの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.APIToken) error
	// FindByID は指定IDのトークンを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.APIToken, error)
	// DeleteByID は指定IDのトークンを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全トークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TagRepository はタグデータの永続化インターフェース。
// すべての読み書きは所有ユーザーIDを明示的に受け取り、所有行のみを対象とする。
type TagRepository interface {
	// FindByID は指定IDのタグを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Tag, error)

	// ListByUserID はユーザーのタグ一覧を名前の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Tag, error)

	// Create はタグを作成する。
	Create(ctx context.Context, tag *model.Tag) error

	// UpdateName はタグ名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// Delete は指定IDのタグを削除する。関連するrecipe_tagsはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// CountByIDsForUser は指定ID群のうち、指定ユーザーが所有するタグの数を返す。
	// レシピへの関連付け前の所有権検証に使用する。
	CountByIDsForUser(ctx context.Context, userID string, ids []string) (int, error)
}

// IngredientRepository は材料データの永続化インターフェース。
type IngredientRepository interface {
	// FindByID は指定IDの材料を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Ingredient, error)

	// ListByUserID はユーザーの材料一覧を名前の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Ingredient, error)

	// Create は材料を作成する。
	Create(ctx context.Context, ingredient *model.Ingredient) error

	// UpdateName は材料名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// Delete は指定IDの材料を削除する。関連するrecipe_ingredientsはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// CountByIDsForUser は指定ID群のうち、指定ユーザーが所有する材料の数を返す。
	CountByIDsForUser(ctx context.Context, userID string, ids []string) (int, error)
}

// RecipeRepository はレシピデータの永続化インターフェース。
// 一覧取得はすべて所有ユーザーIDでスコープされる。
type RecipeRepository interface {
	// FindByID は指定IDのレシピをタグ・材料の関連付きで取得する。
	// 見つからない場合はnilを返す。所有権の検証は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Recipe, error)

	// ListByUserID はユーザーのレシピ一覧を作成日時の降順で返す。
	// filterのTagIDsが空でない場合、いずれかのタグに関連付くレシピに絞り込む（OR）。
	// IngredientIDsも同様。両方が指定された場合は両条件を満たすレシピのみ返す（AND）。
	// 結果は重複なし。
	ListByUserID(ctx context.Context, userID string, filter model.RecipeFilter) ([]*model.Recipe, error)

	// Create はレシピとタグ・材料の関連を同一トランザクションで作成する。
	Create(ctx context.Context, recipe *model.Recipe, tagIDs, ingredientIDs []string) error

	// Update はレシピの基本フィールド（関連以外）を更新する。
	Update(ctx context.Context, recipe *model.Recipe) error

	// ReplaceTags はレシピのタグ関連集合を指定ID群で置き換える。
	// 空のID群を渡すと関連はすべて解除される。
	ReplaceTags(ctx context.Context, recipeID string, tagIDs []string) error

	// ReplaceIngredients はレシピの材料関連集合を指定ID群で置き換える。
	ReplaceIngredients(ctx context.Context, recipeID string, ingredientIDs []string) error

	// UpdateImagePath はレシピの画像パスを更新する。
	UpdateImagePath(ctx context.Context, recipeID, imagePath string) error

	// Delete は指定IDのレシピを削除する。関連はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListImagePathsByUserID はユーザーの全レシピの画像パス（空でないもの）を返す。
	// 退会時のメディアファイル削除に使用する。
	ListImagePathsByUserID(ctx context.Context, userID string) ([]string, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
