// Package model はドメインモデルを定義する。
package model

import "time"

// Recipe はユーザーが所有するレシピを表す。
// TagsとIngredientsは多対多の関連で、順序は保証されない。
type Recipe struct {
	ID          string
	UserID      string
	Title       string
	TimeMinutes int
	Price       float64
	Link        string
	Description string
	ImagePath   string
	Tags        []*Tag
	Ingredients []*Ingredient
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tag はレシピ分類用のタグを表す。所有ユーザーごとに管理される。
type Tag struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Ingredient はレシピの材料を表す。所有ユーザーごとに管理される。
type Ingredient struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// RecipeFilter はレシピ一覧のフィルタ条件を表す。
// TagIDs内はOR、IngredientIDs内もOR、両者が指定された場合はANDで絞り込む。
// 空のスライスはそのフィルタを適用しないことを意味する。
type RecipeFilter struct {
	TagIDs        []string
	IngredientIDs []string
}
