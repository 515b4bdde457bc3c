package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "rs")
	return store, mr, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testRecord(token string) Record {
	now := time.Now().UTC().Truncate(time.Second)
	return Record{
		UserID:    7,
		Device:    "Agent-A",
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func TestUpsertThenFind(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("tok-1")
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Find(ctx, 7, "Agent-A")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Token != "tok-1" || got.UserID != 7 || got.Device != "Agent-A" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) || !got.IssuedAt.Equal(rec.IssuedAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	byTok, err := store.FindByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("find by token: %v", err)
	}
	if byTok.UserID != 7 || byTok.Device != "Agent-A" {
		t.Fatalf("unexpected record by token: %+v", byTok)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store, _, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("tok-1")
	for i := 0; i < 3; i++ {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	keys, err := rdb.Keys(ctx, "rs:*").Result()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected record + token index, got %v", keys)
	}
	if _, err := store.FindByToken(ctx, "tok-1"); err != nil {
		t.Fatalf("find by token after retries: %v", err)
	}
}

func TestUpsertRotationDropsOldToken(t *testing.T) {
	store, _, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Upsert(ctx, testRecord("tok-old")); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := store.Upsert(ctx, testRecord("tok-new")); err != nil {
		t.Fatalf("upsert new: %v", err)
	}

	if _, err := store.FindByToken(ctx, "tok-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old token to be gone, got %v", err)
	}
	got, err := store.Find(ctx, 7, "Agent-A")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Token != "tok-new" {
		t.Fatalf("expected overwritten token, got %q", got.Token)
	}

	keys, err := rdb.Keys(ctx, "rs:s:*").Result()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected a single record for the pair, got %v", keys)
	}
}

func TestDevicesAreIndependent(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	a := testRecord("tok-a")
	b := testRecord("tok-b")
	b.Device = "Agent-B"
	if err := store.Upsert(ctx, a); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := store.Upsert(ctx, b); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	for device, want := range map[string]string{"Agent-A": "tok-a", "Agent-B": "tok-b"} {
		got, err := store.Find(ctx, 7, device)
		if err != nil {
			t.Fatalf("find %s: %v", device, err)
		}
		if got.Token != want {
			t.Fatalf("device %s token = %q, want %q", device, got.Token, want)
		}
	}
}

func TestUpsertRejectsTokenOwnedElsewhere(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Upsert(ctx, testRecord("shared")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	other := testRecord("shared")
	other.UserID = 8
	if err := store.Upsert(ctx, other); !errors.Is(err, ErrTokenConflict) {
		t.Fatalf("expected ErrTokenConflict, got %v", err)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Upsert(ctx, testRecord("tok-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := store.Delete(ctx, 7, "Agent-A")
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, 7, "Agent-A")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}

	if _, err := store.Find(ctx, 7, "Agent-A"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.FindByToken(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected token index removed, got %v", err)
	}
}

func TestRecordExpiresWithKey(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("tok-1")
	rec.ExpiresAt = time.Now().Add(time.Hour)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.Find(ctx, 7, "Agent-A"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record to be gone, got %v", err)
	}
	if _, err := store.FindByToken(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired token index to be gone, got %v", err)
	}
}

func TestFindCorruptRecord(t *testing.T) {
	store, _, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	key := store.recordKey(7, "Agent-A")
	if err := rdb.HSet(ctx, key, fieldToken, "x", fieldRecord, "\x09garbage").Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Find(ctx, 7, "Agent-A"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestStoreRedisDown(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	mr.Close()

	ctx := context.Background()
	if err := store.Upsert(ctx, testRecord("tok-1")); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from upsert, got %v", err)
	}
	if _, err := store.Find(ctx, 7, "Agent-A"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from find, got %v", err)
	}
}
