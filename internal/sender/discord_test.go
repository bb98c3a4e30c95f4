package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiscordSendOne(t *testing.T) {
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL, "bot-token", 5*time.Second)
	res := s.SendOne(context.Background(), "chan-1", "hi", "")

	require.True(t, res.Success)
	require.Equal(t, "/channels/chan-1/messages", gotPath)
	require.Equal(t, "Bot bot-token", gotAuth)
}

func TestDiscordSendManyAllDelivered(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path]++
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL, "bot-token", 5*time.Second)
	res := s.SendMany(context.Background(), []string{"a", "b", "c"}, "hi", "")

	require.True(t, res.Success)
	require.Equal(t, "3/3 delivered", res.Message)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, seen["/channels/a/messages"])
	require.Equal(t, 1, seen["/channels/b/messages"])
	require.Equal(t, 1, seen["/channels/c/messages"])
}

func TestDiscordSendManyPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/channels/bad/") {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "Unknown Channel"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL, "bot-token", 5*time.Second)
	res := s.SendMany(context.Background(), []string{"a", "bad", "c"}, "hi", "")

	// success is the AND over recipients; the ratio survives in the message
	require.False(t, res.Success)
	require.Contains(t, res.Message, "2/3 delivered")
	require.Contains(t, res.Message, "Unknown Channel")
}

func TestDiscordImplementsBulkSender(t *testing.T) {
	var s Sender = NewDiscordSender("http://unused", "bot-token", 5*time.Second)
	_, ok := s.(BulkSender)
	require.True(t, ok)
}
