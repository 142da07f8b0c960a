package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Backup code issuance parameters.
const (
	// BackupCodeCount is the number of backup codes issued per enrollment.
	BackupCodeCount = 10
	// backupCodeLength is the length of a plaintext backup code.
	backupCodeLength = 10
	// backupCodeCharset excludes lowercase to survive user transcription.
	backupCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrMalformedBackupHash reports a stored hash that is not in salt$hash form.
var ErrMalformedBackupHash = errors.New("cryptox: malformed backup code hash")

// BackupCode pairs a plaintext code (shown to the user exactly once) with the
// peppered hash that gets persisted.
type BackupCode struct {
	Code string
	Hash string
}

// HashBackupCode derives a peppered PBKDF2-SHA256 hash of a backup code,
// encoded as "salt$hash" with both parts base64. A fresh random salt is used
// per code.
func HashBackupCode(code string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hashBackupCodeWithSalt(code, base64.StdEncoding.EncodeToString(salt)), nil
}

func hashBackupCodeWithSalt(code, b64Salt string) string {
	key := pbkdf2.Key(
		[]byte(GetPepper()+normalizeBackupCode(code)),
		[]byte(b64Salt),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha256.New,
	)
	return b64Salt + "$" + base64.StdEncoding.EncodeToString(key)
}

// VerifyBackupCode reports whether code matches the stored "salt$hash" value.
func VerifyBackupCode(code, stored string) (bool, error) {
	salt, _, ok := strings.Cut(stored, "$")
	if !ok || salt == "" {
		return false, ErrMalformedBackupHash
	}

	computed := hashBackupCodeWithSalt(code, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1, nil
}

// ConsumeBackupCode finds the stored hash matching code and returns the hash
// list with that single entry removed. The second return is false when no
// hash matched; the input slice is never mutated.
func ConsumeBackupCode(code string, hashes []string) ([]string, bool) {
	for i, stored := range hashes {
		ok, err := VerifyBackupCode(code, stored)
		if err != nil || !ok {
			continue
		}

		next := make([]string, 0, len(hashes)-1)
		next = append(next, hashes[:i]...)
		next = append(next, hashes[i+1:]...)
		return next, true
	}
	return nil, false
}

// GenerateBackupCodes issues a fresh set of backup codes with their hashes.
func GenerateBackupCodes(count int) ([]BackupCode, error) {
	if count <= 0 {
		count = BackupCodeCount
	}

	codes := make([]BackupCode, count)
	for i := range codes {
		code, err := generateBackupCode()
		if err != nil {
			return nil, err
		}
		hash, err := HashBackupCode(code)
		if err != nil {
			return nil, err
		}
		codes[i] = BackupCode{Code: code, Hash: hash}
	}
	return codes, nil
}

func generateBackupCode() (string, error) {
	code := make([]byte, backupCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		code[i] = backupCodeCharset[n.Int64()]
	}
	return string(code), nil
}

// normalizeBackupCode strips whitespace and upcases, so user input survives
// transcription from a printed sheet.
func normalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
