package apikey

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
)

type errList struct{ err error }

// memSet implements the set commands RedisList uses; every other Cmdable method panics via the nil embed.
type memSet struct {
	redis.Cmdable
	members map[string]map[string]bool
}

func newMemSet() *memSet { return &memSet{members: map[string]map[string]bool{}} }

func (m *memSet) SIsMember(_ context.Context, key string, member interface{}) *redis.BoolCmd {
	return redis.NewBoolResult(m.members[key][member.(string)], nil)
}

func (m *memSet) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if m.members[key] == nil {
		m.members[key] = map[string]bool{}
	}
	var added int64
	for _, v := range members {
		if !m.members[key][v.(string)] {
			m.members[key][v.(string)] = true
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (m *memSet) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	var removed int64
	for _, v := range members {
		if m.members[key][v.(string)] {
			delete(m.members[key], v.(string))
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (e errList) Contains(context.Context, string) (bool, error) { return false, e.err }

func TestStaticList(t *testing.T) {
	l := NewStaticList("k1", "", "k2")
	ctx := context.Background()

	for _, k := range []string{"k1", "k2"} {
		if ok, err := l.Contains(ctx, k); err != nil || !ok {
			t.Fatalf("expected %s accepted", k)
		}
	}
	for _, k := range []string{"", "k3", "k1 "} {
		if ok, _ := l.Contains(ctx, k); ok {
			t.Fatalf("expected %q rejected", k)
		}
	}
}

func TestAny_StopsOnError(t *testing.T) {
	boom := errors.New("redis down")
	a := Any{NewStaticList("k1"), errList{err: boom}}

	if ok, err := a.Contains(context.Background(), "k1"); err != nil || !ok {
		t.Fatalf("static hit should short-circuit, got %v %v", ok, err)
	}
	if _, err := a.Contains(context.Background(), "other"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRedisList_WrapsConnectionErrors(t *testing.T) {
	// Nothing listens on this port; the lookup must fail rather than report a miss.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	l := NewRedisList(rdb, "apikeys")
	if _, err := l.Contains(context.Background(), "k1"); err == nil {
		t.Fatalf("expected connection error")
	}
	if ok, err := l.Contains(context.Background(), ""); ok || err != nil {
		t.Fatalf("empty key should be rejected without a lookup")
	}
}

func TestRedisList_AddContainsRevoke(t *testing.T) {
	ctx := context.Background()
	set := newMemSet()
	l := NewRedisList(set, "apikeys")

	key := Generate()
	if ok, err := l.Contains(ctx, key); err != nil || ok {
		t.Fatalf("expected miss before add, got %v %v", ok, err)
	}
	if err := l.Add(ctx, key); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !set.members["apikeys"][Digest(key)] || set.members["apikeys"][key] {
		t.Fatalf("expected only the digest stored: %v", set.members)
	}
	if ok, err := l.Contains(ctx, key); err != nil || !ok {
		t.Fatalf("expected hit after add, got %v %v", ok, err)
	}

	if err := l.Revoke(ctx, key); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := l.Contains(ctx, key); ok {
		t.Fatalf("expected miss after revoke")
	}
	if err := l.Revoke(ctx, key); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey on second revoke, got %v", err)
	}
	if err := l.Add(ctx, ""); err == nil {
		t.Fatalf("expected error adding empty key")
	}
}

func TestGenerate(t *testing.T) {
	a, b := Generate(), Generate()
	if a == b || !strings.HasPrefix(a, keyPrefix) || len(a) != len(keyPrefix)+64 {
		t.Fatalf("unexpected keys %q %q", a, b)
	}
}

func TestDigestIsStable(t *testing.T) {
	if Digest("k1") != Digest("k1") || Digest("k1") == Digest("k2") {
		t.Fatalf("digest must be deterministic and distinct")
	}
	if len(Digest("k1")) != 64 {
		t.Fatalf("expected hex sha256")
	}
}
