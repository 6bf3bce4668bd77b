package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/recipeman/internal/model"
)

// makeJPEG はテスト用のJPEG画像データを生成する。
func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// makePNG はテスト用のPNG画像データを生成する。
func makePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), 5*1024*1024)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	return store
}

func TestNewDiskStore_CreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")

	store, err := NewDiskStore(dir, 1024)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	info, err := os.Stat(store.BaseDir())
	if err != nil {
		t.Fatalf("base dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("base dir is not a directory")
	}
}

func TestSave_JPEG_WritesFileAndThumbnail(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save(bytes.NewReader(makeJPEG(t, 640, 480)))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasSuffix(name, ".jpg") {
		t.Errorf("saved name = %q, want .jpg suffix", name)
	}
	if strings.ContainsAny(name, "/\\") {
		t.Errorf("saved name = %q, must be a bare file name", name)
	}

	// 元画像がディスクに存在する
	if _, err := os.Stat(filepath.Join(store.BaseDir(), name)); err != nil {
		t.Errorf("original image not on disk: %v", err)
	}
	// サムネイルも生成される
	if _, err := os.Stat(filepath.Join(store.BaseDir(), ThumbnailName(name))); err != nil {
		t.Errorf("thumbnail not on disk: %v", err)
	}
}

func TestSave_PNG_KeepsFormat(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save(bytes.NewReader(makePNG(t)))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasSuffix(name, ".png") {
		t.Errorf("saved name = %q, want .png suffix", name)
	}
}

func TestSave_UniqueNames(t *testing.T) {
	store := newTestStore(t)

	data := makeJPEG(t, 32, 32)
	name1, err := store.Save(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	name2, err := store.Save(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if name1 == name2 {
		t.Error("same content should still get unique file names")
	}
}

func TestSave_NonImage_ReturnsInvalidImageError(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(strings.NewReader("これは画像ではありません"))
	if err == nil {
		t.Fatal("expected error for non-image data")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeInvalidImage {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidImage)
	}
}

func TestSave_OversizedData_ReturnsValidationError(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 64) // 64バイト上限
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	_, err = store.Save(bytes.NewReader(makeJPEG(t, 640, 480)))
	if err == nil {
		t.Fatal("expected error for oversized data")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeValidationFailed)
	}
}

func TestRemove_DeletesFileAndThumbnail(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save(bytes.NewReader(makeJPEG(t, 64, 64)))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.BaseDir(), name)); !os.IsNotExist(err) {
		t.Error("original image should be deleted")
	}
	if _, err := os.Stat(filepath.Join(store.BaseDir(), ThumbnailName(name))); !os.IsNotExist(err) {
		t.Error("thumbnail should be deleted")
	}
}

func TestRemove_MissingFile_ReturnsError(t *testing.T) {
	store := newTestStore(t)

	if err := store.Remove("no-such-file.jpg"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRemove_StripsDirectoryComponents(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save(bytes.NewReader(makeJPEG(t, 32, 32)))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// ディレクトリを含むパスでもベース名のファイルが削除される
	if err := store.Remove("../../etc/" + name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.BaseDir(), name)); !os.IsNotExist(err) {
		t.Error("image should be deleted by base name")
	}
}

func TestThumbnailName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"abc.jpg", "abc_thumb.jpg"},
		{"abc.png", "abc_thumb.jpg"},
		{"abc.gif", "abc_thumb.jpg"},
	}
	for _, tt := range tests {
		if got := ThumbnailName(tt.name); got != tt.want {
			t.Errorf("ThumbnailName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
