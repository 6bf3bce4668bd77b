package auth

import (
	"strings"
	"testing"
)

// ハッシュ化したパスワードが検証を通ることを確認
func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("secret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash == "secret-pass" {
		t.Error("hash must differ from plain password")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash = %q, expected bcrypt format", hash)
	}
	if !VerifyPassword(hash, "secret-pass") {
		t.Error("VerifyPassword should accept the original password")
	}
}

// 異なるパスワードでは検証が失敗することを確認
func TestVerifyPassword_WrongPassword(t *testing.T) {
	hash, err := HashPassword("secret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if VerifyPassword(hash, "wrong-pass") {
		t.Error("VerifyPassword should reject a wrong password")
	}
}

// 同じパスワードでもソルトによりハッシュが毎回異なることを確認
func TestHashPassword_Salted(t *testing.T) {
	hash1, err := HashPassword("secret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	hash2, err := HashPassword("secret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("hashes should differ due to random salt")
	}
}

// 不正なハッシュ文字列は常に検証に失敗する
func TestVerifyPassword_MalformedHash(t *testing.T) {
	if VerifyPassword("not-a-bcrypt-hash", "secret-pass") {
		t.Error("VerifyPassword should reject a malformed hash")
	}
}
