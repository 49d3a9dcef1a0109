package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
)

func newUpstashTestServer(t *testing.T, handle func(cmd []any) string) (*UpstashRemote, *[][]any) {
	t.Helper()

	var (
		mu       sync.Mutex
		commands [][]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer token")
		}
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
			return
		}
		mu.Lock()
		commands = append(commands, cmd)
		mu.Unlock()
		fmt.Fprint(w, handle(cmd))
	}))
	t.Cleanup(server.Close)

	remote, err := NewUpstashRemote(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithKeyPrefix("test:"),
	)
	if err != nil {
		t.Fatalf("NewUpstashRemote() error = %v", err)
	}
	return remote, &commands
}

func TestUpstashRemoteSetUsesPrefixedKey(t *testing.T) {
	t.Parallel()

	remote, commands := newUpstashTestServer(t, func([]any) string { return `{"result":"OK"}` })

	if err := remote.Set(context.Background(), "u1:k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := (*commands)[0]
	want := []any{"SET", "test:u1:k", `{"a":1}`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("command = %#v, want %#v", got, want)
	}
}

func TestUpstashRemoteSetWithTTL(t *testing.T) {
	t.Parallel()

	remote, commands := newUpstashTestServer(t, func([]any) string { return `{"result":"OK"}` })
	remote.ttl = 1500_000_000 // 1.5s rounds up

	if err := remote.Set(context.Background(), "k", []byte(`1`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got := (*commands)[0]
	if len(got) != 5 || got[3] != "EX" || got[4] != float64(2) {
		t.Fatalf("command = %#v, want EX 2", got)
	}
}

func TestUpstashRemoteGet(t *testing.T) {
	t.Parallel()

	remote, _ := newUpstashTestServer(t, func(cmd []any) string {
		if cmd[1] == "test:u1:missing" {
			return `{"result":null}`
		}
		return `{"result":"{\"a\":1}"}`
	})

	val, ok, err := remote.Get(context.Background(), "u1:k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(val) != `{"a":1}` {
		t.Fatalf("Get() = %s, %v, want {\"a\":1}, true", val, ok)
	}

	_, ok, err = remote.Get(context.Background(), "u1:missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatalf("Get() ok = true for missing key")
	}
}

func TestUpstashRemoteErrorPayload(t *testing.T) {
	t.Parallel()

	remote, _ := newUpstashTestServer(t, func([]any) string { return `{"error":"WRONGTYPE"}` })

	if _, _, err := remote.Get(context.Background(), "k"); err == nil || err.Error() != "WRONGTYPE" {
		t.Fatalf("Get() error = %v, want WRONGTYPE", err)
	}
}

func TestUpstashRemoteKeysFollowsCursor(t *testing.T) {
	t.Parallel()

	remote, commands := newUpstashTestServer(t, func(cmd []any) string {
		if cmd[1] == "0" {
			return `{"result":["7",["test:u1:ceo:recent"]]}`
		}
		return `{"result":["0",["test:u1:ceo:weekly_plans"]]}`
	})

	keys, err := remote.Keys(context.Background(), "u1:ceo:")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if want := []string{"u1:ceo:recent", "u1:ceo:weekly_plans"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	if len(*commands) != 2 {
		t.Fatalf("scan calls = %d, want 2", len(*commands))
	}
	if got := (*commands)[0][3]; got != "test:u1:ceo:*" {
		t.Fatalf("MATCH pattern = %v, want %q", got, "test:u1:ceo:*")
	}
}

func TestStoreOverUpstashFallsBackOnHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	remote, err := NewUpstashRemote(UpstashConfig{URL: server.URL, Token: "token"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewUpstashRemote() error = %v", err)
	}
	store := New(remote)

	if err := store.Write(context.Background(), "k", "u1", "v"); err == nil {
		t.Fatalf("Write() error = nil, want degraded")
	}
	raw, _ := store.Read(context.Background(), "k", "u1")
	if string(raw) != `"v"` {
		t.Fatalf("Read() = %s, want %q", raw, `"v"`)
	}
}

func TestNewUpstashRemoteValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRemote(UpstashConfig{Token: "t"}); err == nil {
		t.Fatalf("NewUpstashRemote() without url error = nil")
	}
	if _, err := NewUpstashRemote(UpstashConfig{URL: "https://example.upstash.io"}); err == nil {
		t.Fatalf("NewUpstashRemote() without token error = nil")
	}
	if _, err := NewUpstashRemote(UpstashConfig{URL: "https://example.upstash.io", Token: "t"}, WithTTL(-1)); err == nil {
		t.Fatalf("NewUpstashRemote() with negative ttl error = nil")
	}
}

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	if got := escapeGlob("a*b?[c]"); got != `a\*b\?\[c\]` {
		t.Fatalf("escapeGlob() = %q", got)
	}
}
