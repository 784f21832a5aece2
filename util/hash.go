package util

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = errors.New("password is empty")

// PasswordCost is the bcrypt work factor of new hashes
var PasswordCost = bcrypt.DefaultCost

// HashPassword returns the base64 encoded bcrypt hash of plaintext
func HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("cannot hash password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyHash compares plaintext with a stored hash.
// The hash is either base64 encoded or a raw "$2a$..." bcrypt string.
func VerifyHash(storedHash string, plaintext string) (bool, error) {
	hash, err := decodeHash(storedHash)
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword(hash, []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("cannot verify password: %w", err)
	}
}

func decodeHash(storedHash string) ([]byte, error) {
	if strings.HasPrefix(storedHash, "$2") {
		return []byte(storedHash), nil
	}
	hash, err := base64.StdEncoding.DecodeString(storedHash)
	if err != nil {
		return nil, fmt.Errorf("cannot decode base64 hash: %w", err)
	}
	return hash, nil
}
