package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Scheme     = "pbkdf2-sha256"
	DefaultRounds    = 29000
	pbkdf2SaltSize   = 16
	pbkdf2KeySize    = sha256.Size
	maxPBKDF2Rounds  = 10_000_000
	bcryptHashPrefix = "$2"
)

// ErrMalformedHash indicates a stored hash could not be parsed.
var ErrMalformedHash = errors.New("crypto: malformed hash")

// ErrMismatch indicates the presented secret does not match the hash.
var ErrMismatch = errors.New("crypto: secret does not match hash")

// HashPassword hashes plaintext using bcrypt.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword compares plaintext to hashed secret.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}

// HashSecret returns a passlib compatible PBKDF2-SHA256 hash of plain:
// $pbkdf2-sha256$<rounds>$<salt>$<checksum>, salt and checksum in adapted base64.
func HashSecret(plain string, rounds int) (string, error) {
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	if rounds > maxPBKDF2Rounds {
		return "", fmt.Errorf("crypto: rounds %d exceed the maximum of %d", rounds, maxPBKDF2Rounds)
	}
	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := pbkdf2.Key([]byte(plain), salt, rounds, pbkdf2KeySize, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s", pbkdf2Scheme, rounds, ab64Encode(salt), ab64Encode(sum)), nil
}

// VerifySecret checks plain against a PBKDF2-SHA256 or bcrypt hash.
// It never panics on malformed input; a hash it cannot parse yields ErrMalformedHash.
func VerifySecret(hash, plain string) error {
	hash = strings.TrimSpace(hash)
	switch {
	case strings.HasPrefix(hash, "$"+pbkdf2Scheme+"$"):
		return verifyPBKDF2(hash, plain)
	case strings.HasPrefix(hash, bcryptHashPrefix):
		if err := ComparePassword([]byte(hash), plain); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return ErrMismatch
			}
			return fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return nil
	default:
		return ErrMalformedHash
	}
}

func verifyPBKDF2(hash, plain string) error {
	// "", scheme, rounds, salt, checksum
	parts := strings.Split(hash, "$")
	if len(parts) != 5 {
		return ErrMalformedHash
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 || rounds > maxPBKDF2Rounds {
		return ErrMalformedHash
	}
	salt, err := ab64Decode(parts[3])
	if err != nil {
		return ErrMalformedHash
	}
	want, err := ab64Decode(parts[4])
	if err != nil || len(want) == 0 {
		return ErrMalformedHash
	}
	got := pbkdf2.Key([]byte(plain), salt, rounds, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}

// ab64Encode is passlib's adapted base64: standard alphabet with '.' instead of '+', unpadded.
func ab64Encode(data []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(data), "+", ".")
}

func ab64Decode(value string) ([]byte, error) {
	value = strings.TrimRight(strings.ReplaceAll(value, ".", "+"), "=")
	return base64.RawStdEncoding.DecodeString(value)
}
