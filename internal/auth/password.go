// Package auth はユーザー名・パスワード認証、セッション管理、
// ログイン試行のロックアウトを提供する。
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// 格納形式のアルゴリズムタグ:
//   - bcrypt:         "$2a$..." / "$2b$..."（適応型ハッシュ）
//   - salted SHA-256: "salt$hex"（16バイトsaltのhex + SHA-256のhex）
const (
	bcryptPrefix  = "$2"
	saltSeparator = "$"
	saltBytes     = 16
)

// ValidateStoredHash は格納ハッシュがサポート対象のアルゴリズムタグ
// （bcryptまたはsalted SHA-256）のいずれかの形式であるかを検証する。
// 起動時のクレデンシャルテーブル検証に使用し、平文や未知の形式を
// リクエスト処理に到達する前に排除する。
func ValidateStoredHash(storedHash string) error {
	if storedHash == "" {
		return fmt.Errorf("empty stored hash")
	}

	if strings.HasPrefix(storedHash, bcryptPrefix) {
		if _, err := bcrypt.Cost([]byte(storedHash)); err != nil {
			return fmt.Errorf("malformed bcrypt hash: %w", err)
		}
		return nil
	}

	salt, digest, ok := strings.Cut(storedHash, saltSeparator)
	if !ok || salt == "" || digest == "" {
		return fmt.Errorf("unsupported password hash format")
	}
	if _, err := hex.DecodeString(digest); err != nil || len(digest) != sha256.Size*2 {
		return fmt.Errorf("unsupported password hash format")
	}
	return nil
}

// VerifyPassword は平文secretを格納済みハッシュと照合する。
// 格納形式のアルゴリズムタグを判別して検証し、一致すればtrueを返す。
// 比較は定数時間で行われ、secretの内容はログに残らない。
// 未知の形式の場合はエラーを返す。
func VerifyPassword(secret, storedHash string) (bool, error) {
	if err := ValidateStoredHash(storedHash); err != nil {
		return false, err
	}

	// bcrypt（$2a$ / $2b$）: CompareHashAndPasswordが内部で定数時間比較を行う
	if strings.HasPrefix(storedHash, bcryptPrefix) {
		err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret))
		if err == nil {
			return true, nil
		}
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, fmt.Errorf("bcrypt verification failed: %w", err)
	}

	// salted SHA-256（"salt$hex"）
	salt, want, _ := strings.Cut(storedHash, saltSeparator)

	sum := sha256.Sum256([]byte(secret + salt))
	got := hex.EncodeToString(sum[:])

	// 長さが一致している前提でsubtle.ConstantTimeCompareを使う
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

// HashPassword はsalted SHA-256形式（"salt$hex"）の格納用ハッシュを生成する。
// hashpwサブコマンドでのオペレーター向けプロビジョニングに使用する。
func HashPassword(secret string) (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(b)

	sum := sha256.Sum256([]byte(secret + salt))
	return salt + saltSeparator + hex.EncodeToString(sum[:]), nil
}

// HashPasswordBcrypt はbcrypt形式の格納用ハッシュを生成する。
func HashPasswordBcrypt(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate bcrypt hash: %w", err)
	}
	return string(hash), nil
}
