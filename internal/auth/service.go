// Package auth はユーザー登録、トークン認証、アカウント管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/recipeman/internal/model"
	"github.com/hitoshi/recipeman/internal/repository"
)

// passwordMinLength はパスワードの最小文字数。
const passwordMinLength = 5

// ImageRemover はユーザー退会時に画像ファイルを削除するインターフェース。
type ImageRemover interface {
	Remove(path string) error
}

// ImagePathLister はユーザーの全レシピ画像パスを列挙するインターフェース。
type ImagePathLister interface {
	ListImagePathsByUserID(ctx context.Context, userID string) ([]string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenMaxAge time.Duration // トークン有効期間
}

// Service は認証とアカウント管理のビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	pathLister ImagePathLister
	remover    ImageRemover
	config     ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	pathLister ImagePathLister,
	remover ImageRemover,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		pathLister: pathLister,
		remover:    remover,
		config:     config,
	}
}

// Register は新規ユーザーを登録する。
// メールアドレスが既に登録済みの場合はDuplicateEmailErrorを返す。
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("登録済みユーザーの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	return user, nil
}

// IssueToken はメールアドレスとパスワードを検証し、APIトークンを発行する。
// 認証に失敗した場合はInvalidCredentialsErrorを返す。
// ユーザーが存在しない場合もパスワード不一致と同じエラーを返し、
// メールアドレスの登録有無を漏らさない。
func (s *Service) IssueToken(ctx context.Context, email, password string) (*model.APIToken, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil || !VerifyPassword(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.createToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("api token issued",
		slog.String("user_id", user.ID),
	)

	return token, nil
}

// Logout はトークンを失効させる。
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return model.NewUnauthorizedError()
	}

	if err := s.tokenRepo.DeleteByID(ctx, tokenID); err != nil {
		return fmt.Errorf("トークンの失効に失敗しました: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser は指定IDのユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はユーザーの名前とパスワードを更新する。
// nilのフィールドは変更しない。パスワードを変更した場合も既存トークンは維持される。
func (s *Service) UpdateProfile(ctx context.Context, userID string, name, password *string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if name != nil {
		user.Name = *name
	}
	if password != nil {
		if err := validatePassword(*password); err != nil {
			return nil, err
		}
		hash, err := HashPassword(*password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	slog.Info("user profile updated",
		slog.String("user_id", userID),
	)

	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 画像ファイル → トークン → ユーザー（+ CASCADE: tags, ingredients, recipes, 関連）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. レシピ画像ファイルを削除
	if s.pathLister != nil && s.remover != nil {
		paths, err := s.pathLister.ListImagePathsByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("画像パス一覧の取得に失敗しました: %w", err)
		}
		for _, path := range paths {
			if err := s.remover.Remove(path); err != nil {
				// ファイル削除の失敗は退会を妨げない。孤児ファイルはワーカーが回収する。
				slog.Warn("画像ファイルの削除に失敗しました",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	// 2. トークンを削除
	if err := s.tokenRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("トークンの削除に失敗しました: %w", err)
	}

	// 3. ユーザーを削除（レシピ・タグ・材料はCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// createToken はAPIトークンを作成し永続化する。
func (s *Service) createToken(ctx context.Context, userID string) (*model.APIToken, error) {
	tokenID, err := generateTokenID()
	if err != nil {
		return nil, fmt.Errorf("トークンIDの生成に失敗しました: %w", err)
	}

	token := &model.APIToken{
		ID:        tokenID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.config.TokenMaxAge),
		CreatedAt: time.Now(),
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}

	return token, nil
}

// generateTokenID は暗号的に安全なトークンIDを生成する。
func generateTokenID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validateEmail はメールアドレスの形式を検証する。
func validateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("メールアドレスは必須です")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return model.NewValidationError("メールアドレスの形式が不正です")
	}
	if len(email) > 255 {
		return model.NewValidationError("メールアドレスは255文字以内で指定してください")
	}
	return nil
}

// validatePassword はパスワードの強度を検証する。
func validatePassword(password string) error {
	if len(password) < passwordMinLength {
		return model.NewValidationError(
			fmt.Sprintf("パスワードは%d文字以上で指定してください", passwordMinLength))
	}
	return nil
}
