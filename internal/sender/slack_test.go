package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlackSendOneSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat.postMessage", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, "xoxb-test", 5*time.Second)
	res := s.SendOne(context.Background(), "C123", "hello", "")

	require.True(t, res.Success)
	require.Equal(t, "Bearer xoxb-test", gotAuth)
	require.Equal(t, "C123", gotBody["channel"])
	require.Equal(t, "hello", gotBody["text"])
	require.NotContains(t, gotBody, "attachments")
}

func TestSlackSendOneWithAttachment(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, "xoxb-test", 5*time.Second)
	res := s.SendOne(context.Background(), "C123", "hello", "https://files.example.com/pic.png")

	require.True(t, res.Success)
	require.Contains(t, gotBody, "attachments")
}

func TestSlackSendOneAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, "xoxb-test", 5*time.Second)
	res := s.SendOne(context.Background(), "C404", "hello", "")

	require.False(t, res.Success)
	require.Contains(t, res.Message, "channel_not_found")
}

func TestSlackMissingToken(t *testing.T) {
	s := NewSlackSender("http://unused", "", 5*time.Second)
	res := s.SendOne(context.Background(), "C123", "hello", "")

	require.False(t, res.Success)
	require.Contains(t, res.Message, "token")
}

func TestSlackHasNoBulkCapability(t *testing.T) {
	var s Sender = NewSlackSender("http://unused", "xoxb-test", 5*time.Second)
	_, ok := s.(BulkSender)
	require.False(t, ok)
}
