// Package otp issues and verifies short-lived one-time codes keyed by phone
// number. Codes live in Redis under purpose-scoped keys so the guest-lookup
// and password-reset flows can never consume each other's codes.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const TTL = 5 * time.Minute

const (
	PurposeLookup = "lookup"
	PurposeReset  = "reset"
)

var (
	ErrInvalidCode    = errors.New("invalid code")
	ErrExpiredCode    = errors.New("code expired")
	ErrUnknownPurpose = errors.New("unknown otp purpose")
)

// Code is what gets stored; ExpiresAt is checked in addition to the Redis
// TTL so verification stays correct even against a lagging replica.
type Code struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// commands is the slice of the redis client the store actually uses,
// narrowed so tests can substitute an in-memory fake.
type commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Store struct {
	rdb commands
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func ValidPurpose(purpose string) bool {
	return purpose == PurposeLookup || purpose == PurposeReset
}

func key(purpose, phone string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, phone)
}

// Issue creates a 6-digit code for the phone, overwriting any outstanding
// one: requesting a new code invalidates the previous.
func (s *Store) Issue(ctx context.Context, purpose, phone string) (string, error) {
	if !ValidPurpose(purpose) {
		return "", ErrUnknownPurpose
	}

	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(Code{Code: code, ExpiresAt: time.Now().Add(TTL)})
	if err != nil {
		return "", err
	}

	if err := s.rdb.Set(ctx, key(purpose, phone), payload, TTL).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks the code and consumes it on success: a code verifies at
// most once.
func (s *Store) Verify(ctx context.Context, purpose, phone, code string) error {
	if !ValidPurpose(purpose) {
		return ErrUnknownPurpose
	}

	raw, err := s.rdb.Get(ctx, key(purpose, phone)).Result()
	if err == redis.Nil {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}

	var stored Code
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return ErrInvalidCode
	}

	if err := CheckCode(stored, code, time.Now()); err != nil {
		return err
	}

	return s.rdb.Del(ctx, key(purpose, phone)).Err()
}

// CheckCode is the pure validity rule: exact match AND not expired.
func CheckCode(stored Code, code string, now time.Time) error {
	if stored.Code == "" || stored.Code != code {
		return ErrInvalidCode
	}
	if now.After(stored.ExpiresAt) {
		return ErrExpiredCode
	}
	return nil
}

// GenerateCode returns a zero-padded 6-digit numeric code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
