package otp

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestCheckCodeMatch(t *testing.T) {
	now := time.Now()
	stored := Code{Code: "123456", ExpiresAt: now.Add(TTL)}

	if err := CheckCode(stored, "123456", now); err != nil {
		t.Fatalf("matching code rejected: %v", err)
	}
	if err := CheckCode(stored, "654321", now); err != ErrInvalidCode {
		t.Fatalf("expected ErrInvalidCode for wrong code, got %v", err)
	}
}

func TestCheckCodeExpiry(t *testing.T) {
	now := time.Now()
	stored := Code{Code: "123456", ExpiresAt: now.Add(-time.Second)}

	// The right code after expiry is still a failure.
	if err := CheckCode(stored, "123456", now); err != ErrExpiredCode {
		t.Fatalf("expected ErrExpiredCode, got %v", err)
	}
}

func TestCheckCodeEmptyStored(t *testing.T) {
	if err := CheckCode(Code{}, "", time.Now()); err != ErrInvalidCode {
		t.Fatalf("empty stored code must never verify, got %v", err)
	}
}

func TestGenerateCodeFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected numeric code, got %q", code)
			}
		}
	}
}

func TestValidPurpose(t *testing.T) {
	if !ValidPurpose(PurposeLookup) || !ValidPurpose(PurposeReset) {
		t.Fatal("known purposes should validate")
	}
	if ValidPurpose("login") {
		t.Fatal("unknown purpose must be rejected")
	}
}

/* =========================
   STORE BEHAVIOR
========================= */

type fakeRedis struct {
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestIssueOverwritesPriorCode(t *testing.T) {
	ctx := context.Background()
	store := &Store{rdb: newFakeRedis()}

	first, err := store.Issue(ctx, PurposeLookup, "0901234567")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := store.Issue(ctx, PurposeLookup, "0901234567")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if err := store.Verify(ctx, PurposeLookup, "0901234567", first); err != ErrInvalidCode {
		// The rare case of two identical draws would make the first code
		// verify legitimately.
		if first != second {
			t.Fatalf("reissued code must invalidate the prior one, got %v", err)
		}
	}
	if err := store.Verify(ctx, PurposeLookup, "0901234567", second); err != nil {
		t.Fatalf("latest code rejected: %v", err)
	}
}

func TestVerifyConsumesCode(t *testing.T) {
	ctx := context.Background()
	store := &Store{rdb: newFakeRedis()}

	code, err := store.Issue(ctx, PurposeReset, "0901234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := store.Verify(ctx, PurposeReset, "0901234567", code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := store.Verify(ctx, PurposeReset, "0901234567", code); err != ErrInvalidCode {
		t.Fatalf("a code must verify at most once, got %v", err)
	}
}

func TestPurposesAreScoped(t *testing.T) {
	ctx := context.Background()
	store := &Store{rdb: newFakeRedis()}

	code, err := store.Issue(ctx, PurposeLookup, "0901234567")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := store.Verify(ctx, PurposeReset, "0901234567", code); err != ErrInvalidCode {
		t.Fatalf("a lookup code must not satisfy a reset, got %v", err)
	}
	if err := store.Verify(ctx, PurposeLookup, "0901234567", code); err != nil {
		t.Fatalf("code rejected for its own purpose: %v", err)
	}
}
