// Package image はレシピ画像の検証・保存・サムネイル生成を提供する。
package image

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/hitoshi/recipeman/internal/model"
)

// thumbnailWidth はサムネイルの幅（ピクセル）。高さはアスペクト比を維持して決まる。
const thumbnailWidth = 320

// 保存を許可する画像フォーマットと拡張子の対応。
var allowedFormats = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
}

// DiskStore は画像をローカルディスクに保存するストア。
// ファイル名はUUIDで採番し、元画像と同時にサムネイルも生成する。
type DiskStore struct {
	baseDir  string
	maxBytes int64
}

// NewDiskStore はDiskStoreを生成し、保存先ディレクトリを作成する。
func NewDiskStore(baseDir string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("画像保存ディレクトリの作成に失敗しました: %w", err)
	}
	return &DiskStore{baseDir: baseDir, maxBytes: maxBytes}, nil
}

// Save は画像データを検証して保存し、ベースディレクトリからの相対パスを返す。
// JPEG、PNG、GIF以外のデータ、およびサイズ上限を超えるデータは拒否する。
func (s *DiskStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("アップロードデータの読み取りに失敗しました: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", model.NewValidationError(
			fmt.Sprintf("画像サイズは%dバイト以内にしてください", s.maxBytes))
	}

	// フォーマット判定と画像としての妥当性検証を兼ねる
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", model.NewInvalidImageError()
	}
	ext, ok := allowedFormats[format]
	if !ok {
		return "", model.NewInvalidImageError()
	}

	name := uuid.New().String() + ext
	fullPath := filepath.Join(s.baseDir, name)

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("画像ファイルの書き込みに失敗しました: %w", err)
	}

	// サムネイルの生成失敗は保存を妨げない
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, s.thumbFullPath(name)); err != nil {
		_ = os.Remove(s.thumbFullPath(name))
	}

	return name, nil
}

// Remove は保存済み画像とそのサムネイルを削除する。
// パストラバーサルを防ぐため、ベースディレクトリ直下のファイル名のみ受け付ける。
func (s *DiskStore) Remove(path string) error {
	name := filepath.Base(path)
	if name == "." || name == ".." || name == "/" {
		return fmt.Errorf("不正な画像パスです: %s", path)
	}

	if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil {
		return fmt.Errorf("画像ファイルの削除に失敗しました: %w", err)
	}

	// サムネイルは存在しない場合もある
	if err := os.Remove(s.thumbFullPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("サムネイルの削除に失敗しました: %w", err)
	}

	return nil
}

// BaseDir は保存先ディレクトリを返す。メディア配信とワーカーの走査で使用する。
func (s *DiskStore) BaseDir() string {
	return s.baseDir
}

// thumbFullPath はサムネイルの絶対パスを返す。
func (s *DiskStore) thumbFullPath(name string) string {
	ext := filepath.Ext(name)
	return filepath.Join(s.baseDir, strings.TrimSuffix(name, ext)+"_thumb.jpg")
}

// ThumbnailName は元画像のファイル名からサムネイルのファイル名を導出する。
func ThumbnailName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_thumb.jpg"
}
