package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/recipeman/internal/model"
)

// PostgresIngredientRepo はPostgreSQLを使用した材料リポジトリ。
type PostgresIngredientRepo struct {
	db *sql.DB
}

// NewPostgresIngredientRepo はPostgresIngredientRepoを生成する。
func NewPostgresIngredientRepo(db *sql.DB) *PostgresIngredientRepo {
	return &PostgresIngredientRepo{db: db}
}

// FindByID は指定IDの材料を取得する。見つからない場合はnilを返す。
func (r *PostgresIngredientRepo) FindByID(ctx context.Context, id string) (*model.Ingredient, error) {
	ing := &model.Ingredient{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM ingredients WHERE id = $1`,
		id,
	).Scan(&ing.ID, &ing.UserID, &ing.Name, &ing.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("材料の取得に失敗しました: %w", err)
	}

	return ing, nil
}

// ListByUserID はユーザーの材料一覧を名前の降順で返す。
func (r *PostgresIngredientRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Ingredient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at
		 FROM ingredients WHERE user_id = $1 ORDER BY name DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("材料一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ings []*model.Ingredient
	for rows.Next() {
		ing := &model.Ingredient{}
		if err := rows.Scan(&ing.ID, &ing.UserID, &ing.Name, &ing.CreatedAt); err != nil {
			return nil, fmt.Errorf("材料行の読み取りに失敗しました: %w", err)
		}
		ings = append(ings, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("材料一覧の走査に失敗しました: %w", err)
	}
	return ings, nil
}

// Create は材料を作成する。
func (r *PostgresIngredientRepo) Create(ctx context.Context, ing *model.Ingredient) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ingredients (id, user_id, name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		ing.ID, ing.UserID, ing.Name, ing.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("材料の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateName は材料名を更新する。
func (r *PostgresIngredientRepo) UpdateName(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ingredients SET name = $2 WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("材料名の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("材料が見つかりません: %s", id)
	}
	return nil
}

// Delete は指定IDの材料を削除する。関連するrecipe_ingredientsはCASCADE削除される。
func (r *PostgresIngredientRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM ingredients WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("材料の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("材料が見つかりません: %s", id)
	}
	return nil
}

// CountByIDsForUser は指定ID群のうち、指定ユーザーが所有する材料の数を返す。
func (r *PostgresIngredientRepo) CountByIDsForUser(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT id) FROM ingredients WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(ids),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("材料所有数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ IngredientRepository = (*PostgresIngredientRepo)(nil)
