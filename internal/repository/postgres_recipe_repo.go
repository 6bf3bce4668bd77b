package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/recipeman/internal/model"
)

// PostgresRecipeRepo はPostgreSQLを使用したレシピリポジトリ。
type PostgresRecipeRepo struct {
	db *sql.DB
}

// NewPostgresRecipeRepo はPostgresRecipeRepoを生成する。
func NewPostgresRecipeRepo(db *sql.DB) *PostgresRecipeRepo {
	return &PostgresRecipeRepo{db: db}
}

// FindByID は指定IDのレシピをタグ・材料の関連付きで取得する。見つからない場合はnilを返す。
func (r *PostgresRecipeRepo) FindByID(ctx context.Context, id string) (*model.Recipe, error) {
	recipe := &model.Recipe{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, time_minutes, price, link, description, image_path, created_at, updated_at
		 FROM recipes WHERE id = $1`,
		id,
	).Scan(
		&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.TimeMinutes, &recipe.Price,
		&recipe.Link, &recipe.Description, &recipe.ImagePath, &recipe.CreatedAt, &recipe.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}

	if err := r.loadAssociations(ctx, []*model.Recipe{recipe}); err != nil {
		return nil, err
	}

	return recipe, nil
}

// ListByUserID はユーザーのレシピ一覧を作成日時の降順で返す。
// タグ・材料のフィルタはEXISTSサブクエリで合成するため、結合による行の重複は発生しない。
// フィルタ内はOR（= ANY）、フィルタ種別間はANDで絞り込む。
func (r *PostgresRecipeRepo) ListByUserID(ctx context.Context, userID string, filter model.RecipeFilter) ([]*model.Recipe, error) {
	query, args := buildRecipeListQuery(userID, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("レシピ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var recipes []*model.Recipe
	for rows.Next() {
		recipe := &model.Recipe{}
		if err := rows.Scan(
			&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.TimeMinutes, &recipe.Price,
			&recipe.Link, &recipe.Description, &recipe.ImagePath, &recipe.CreatedAt, &recipe.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("レシピ行の読み取りに失敗しました: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レシピ一覧の走査に失敗しました: %w", err)
	}

	if err := r.loadAssociations(ctx, recipes); err != nil {
		return nil, err
	}

	return recipes, nil
}

// Create はレシピとタグ・材料の関連を同一トランザクションで作成する。
func (r *PostgresRecipeRepo) Create(ctx context.Context, recipe *model.Recipe, tagIDs, ingredientIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recipes (id, user_id, title, time_minutes, price, link, description, image_path, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		recipe.ID, recipe.UserID, recipe.Title, recipe.TimeMinutes, recipe.Price,
		recipe.Link, recipe.Description, recipe.ImagePath, recipe.CreatedAt, recipe.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("レシピの作成に失敗しました: %w", err)
	}

	if err := insertAssociations(ctx, tx, "recipe_tags", "tag_id", recipe.ID, tagIDs); err != nil {
		return err
	}
	if err := insertAssociations(ctx, tx, "recipe_ingredients", "ingredient_id", recipe.ID, ingredientIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Update はレシピの基本フィールド（関連以外）を更新する。
func (r *PostgresRecipeRepo) Update(ctx context.Context, recipe *model.Recipe) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipes
		 SET title = $2, time_minutes = $3, price = $4, link = $5, description = $6, updated_at = NOW()
		 WHERE id = $1`,
		recipe.ID, recipe.Title, recipe.TimeMinutes, recipe.Price, recipe.Link, recipe.Description,
	)
	if err != nil {
		return fmt.Errorf("レシピの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("レシピが見つかりません: %s", recipe.ID)
	}
	return nil
}

// ReplaceTags はレシピのタグ関連集合を指定ID群で置き換える。
// 削除と挿入を同一トランザクションで行い、空のID群では全関連を解除する。
func (r *PostgresRecipeRepo) ReplaceTags(ctx context.Context, recipeID string, tagIDs []string) error {
	return r.replaceAssociations(ctx, "recipe_tags", "tag_id", recipeID, tagIDs)
}

// ReplaceIngredients はレシピの材料関連集合を指定ID群で置き換える。
func (r *PostgresRecipeRepo) ReplaceIngredients(ctx context.Context, recipeID string, ingredientIDs []string) error {
	return r.replaceAssociations(ctx, "recipe_ingredients", "ingredient_id", recipeID, ingredientIDs)
}

// UpdateImagePath はレシピの画像パスを更新する。
func (r *PostgresRecipeRepo) UpdateImagePath(ctx context.Context, recipeID, imagePath string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipes SET image_path = $2, updated_at = NOW() WHERE id = $1`,
		recipeID, imagePath,
	)
	if err != nil {
		return fmt.Errorf("画像パスの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("レシピが見つかりません: %s", recipeID)
	}
	return nil
}

// Delete は指定IDのレシピを削除する。関連はCASCADE削除される。
func (r *PostgresRecipeRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM recipes WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("レシピの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("レシピが見つかりません: %s", id)
	}
	return nil
}

// ListImagePathsByUserID はユーザーの全レシピの画像パス（空でないもの）を返す。
func (r *PostgresRecipeRepo) ListImagePathsByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_path FROM recipes WHERE user_id = $1 AND image_path <> ''`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("画像パス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("画像パス行の読み取りに失敗しました: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("画像パス一覧の走査に失敗しました: %w", err)
	}
	return paths, nil
}

// buildRecipeListQuery はユーザーIDとフィルタから一覧取得クエリとバインド引数を合成する。
// タグ・材料のフィルタ内は = ANY でOR、フィルタ種別間はANDで結合する。
func buildRecipeListQuery(userID string, filter model.RecipeFilter) (string, []interface{}) {
	query := `SELECT id, user_id, title, time_minutes, price, link, description, image_path, created_at, updated_at
	 FROM recipes r WHERE user_id = $1`
	args := []interface{}{userID}

	if len(filter.TagIDs) > 0 {
		args = append(args, pq.Array(filter.TagIDs))
		query += fmt.Sprintf(
			` AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($%d))`,
			len(args),
		)
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, pq.Array(filter.IngredientIDs))
		query += fmt.Sprintf(
			` AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($%d))`,
			len(args),
		)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	return query, args
}

// replaceAssociations は関連テーブルの行を削除・再挿入で置き換える。
func (r *PostgresRecipeRepo) replaceAssociations(ctx context.Context, table, column, recipeID string, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, table),
		recipeID,
	)
	if err != nil {
		return fmt.Errorf("関連の削除に失敗しました: %w", err)
	}

	if err := insertAssociations(ctx, tx, table, column, recipeID, ids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// insertAssociations は関連テーブルに行を挿入する。
// tableとcolumnは呼び出し側が固定値で渡す（ユーザー入力は通さない）。
func insertAssociations(ctx context.Context, tx *sql.Tx, table, column, recipeID string, ids []string) error {
	for _, id := range ids {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (recipe_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, table, column),
			recipeID, id,
		)
		if err != nil {
			return fmt.Errorf("関連の挿入に失敗しました: %w", err)
		}
	}
	return nil
}

// loadAssociations はレシピ群のタグ・材料関連をまとめて読み込む。
func (r *PostgresRecipeRepo) loadAssociations(ctx context.Context, recipes []*model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	ids := make([]string, len(recipes))
	index := make(map[string]*model.Recipe, len(recipes))
	for i, recipe := range recipes {
		ids[i] = recipe.ID
		index[recipe.ID] = recipe
	}

	// タグの読み込み
	rows, err := r.db.QueryContext(ctx,
		`SELECT rt.recipe_id, t.id, t.user_id, t.name, t.created_at
		 FROM recipe_tags rt
		 JOIN tags t ON t.id = rt.tag_id
		 WHERE rt.recipe_id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("タグ関連の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID string
		tag := &model.Tag{}
		if err := rows.Scan(&recipeID, &tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return fmt.Errorf("タグ関連行の読み取りに失敗しました: %w", err)
		}
		if recipe, ok := index[recipeID]; ok {
			recipe.Tags = append(recipe.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("タグ関連の走査に失敗しました: %w", err)
	}

	// 材料の読み込み
	ingRows, err := r.db.QueryContext(ctx,
		`SELECT ri.recipe_id, i.id, i.user_id, i.name, i.created_at
		 FROM recipe_ingredients ri
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("材料関連の取得に失敗しました: %w", err)
	}
	defer ingRows.Close()

	for ingRows.Next() {
		var recipeID string
		ing := &model.Ingredient{}
		if err := ingRows.Scan(&recipeID, &ing.ID, &ing.UserID, &ing.Name, &ing.CreatedAt); err != nil {
			return fmt.Errorf("材料関連行の読み取りに失敗しました: %w", err)
		}
		if recipe, ok := index[recipeID]; ok {
			recipe.Ingredients = append(recipe.Ingredients, ing)
		}
	}
	if err := ingRows.Err(); err != nil {
		return fmt.Errorf("材料関連の走査に失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ RecipeRepository = (*PostgresRecipeRepo)(nil)
