package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"message_dispatch/internal/auth"
	"message_dispatch/internal/models"
	"message_dispatch/internal/sender"
	"message_dispatch/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	dispatchReq *service.DispatchRequest
	dispatchErr error

	listResp *models.MessageListResponse
	listErr  error
	limit    int
	offset   int

	stats    []models.PlatformStats
	statsErr error
}

func (f *fakeService) Dispatch(ctx context.Context, req service.DispatchRequest) (*models.Message, error) {
	f.dispatchReq = &req
	if f.dispatchErr != nil {
		return nil, f.dispatchErr
	}
	return &models.Message{
		ID:         1,
		OwnerID:    req.OwnerID,
		Recipients: req.Recipients,
		Platform:   req.Platform,
		Content:    req.Content,
		Sent:       true,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (f *fakeService) ListMessages(ctx context.Context, ownerID string, limit, offset int) (*models.MessageListResponse, error) {
	f.limit, f.offset = limit, offset
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listResp != nil {
		return f.listResp, nil
	}
	return &models.MessageListResponse{Items: []models.Message{}}, nil
}

func (f *fakeService) Stats(ctx context.Context, ownerID string) ([]models.PlatformStats, error) {
	return f.stats, f.statsErr
}

func newRouter(svc *fakeService) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		RegisterMessageRoutes(r, NewMessageHandler(svc))
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("X-User-ID", "u1")
	return req
}

func TestSendMessageJSON(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	body := `{"platform":"telegram","recipients":["123","456"],"content":"hi"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, svc.dispatchReq)
	require.Equal(t, "u1", svc.dispatchReq.OwnerID)
	require.Equal(t, "telegram", svc.dispatchReq.Platform)
	require.Equal(t, []string{"123", "456"}, svc.dispatchReq.Recipients)
	require.Nil(t, svc.dispatchReq.File)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.Equal(t, 1, msg.ID)
	require.True(t, msg.Sent)
}

func TestSendMessageRejectsUnknownJSONFields(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	body := `{"platform":"telegram","recipients":["123"],"content":"hi","priority":9}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(t, h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.dispatchReq)
}

func TestSendMessageErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", fmt.Errorf("%w: content is required", service.ErrInvalidInput), http.StatusBadRequest, "content is required"},
		{"unsupported platform", fmt.Errorf("%w: %q", sender.ErrUnsupportedPlatform, "sms"), http.StatusBadRequest, "unsupported platform"},
		{"infrastructure", fmt.Errorf("%w: persist message", service.ErrProcessing), http.StatusInternalServerError, "processing failed"},
		{"unclassified", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "processing failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{dispatchErr: tc.err}
			h := newRouter(svc)

			body := `{"platform":"telegram","recipients":["123"],"content":"hi"}`
			req := authed(httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))
			req.Header.Set("Content-Type", "application/json")

			rec := doRequest(t, h, req)
			require.Equal(t, tc.code, rec.Code)
			require.Contains(t, rec.Body.String(), tc.body)
			// internal detail never leaks to the client
			require.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestSendMessageMultipartWithFile(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("platform", "telegram"))
	require.NoError(t, mw.WriteField("content", "report attached"))
	require.NoError(t, mw.WriteField("recipients", "123, 456"))
	fw, err := mw.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := authed(httptest.NewRequest(http.MethodPost, "/api/messages", &buf))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := doRequest(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, svc.dispatchReq)
	require.Equal(t, []string{"123", "456"}, svc.dispatchReq.Recipients)
	require.NotNil(t, svc.dispatchReq.File)
	require.Equal(t, "report.pdf", svc.dispatchReq.File.Name)
	require.Equal(t, []byte("%PDF-1.4 fake"), svc.dispatchReq.File.Data)
}

func TestSendMessageMultipartWithoutFile(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("platform", "slack"))
	require.NoError(t, mw.WriteField("content", "hi"))
	require.NoError(t, mw.WriteField("recipients", "C123"))
	require.NoError(t, mw.WriteField("recipients", "C456"))
	require.NoError(t, mw.Close())

	req := authed(httptest.NewRequest(http.MethodPost, "/api/messages", &buf))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := doRequest(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, []string{"C123", "C456"}, svc.dispatchReq.Recipients)
	require.Nil(t, svc.dispatchReq.File)
}

func TestSendMessageUnauthorized(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	body := `{"platform":"telegram","recipients":["123"],"content":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(t, h, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, svc.dispatchReq)
}

func TestListMessagesCacheHeader(t *testing.T) {
	for _, tc := range []struct {
		fromCache bool
		header    string
	}{
		{false, "MISS"},
		{true, "HIT"},
	} {
		svc := &fakeService{listResp: &models.MessageListResponse{
			Items:     []models.Message{},
			FromCache: tc.fromCache,
		}}
		h := newRouter(svc)

		req := authed(httptest.NewRequest(http.MethodGet, "/api/messages", nil))
		rec := doRequest(t, h, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, tc.header, rec.Header().Get("X-Cache"))
	}
}

func TestListMessagesQueryParams(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/messages?limit=5&offset=15", nil))
	rec := doRequest(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, svc.limit)
	require.Equal(t, 15, svc.offset)
}

func TestListMessagesInvalidParams(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	for _, q := range []string{"limit=abc", "limit=0", "limit=-1", "offset=-3", "offset=x"} {
		req := authed(httptest.NewRequest(http.MethodGet, "/api/messages?"+q, nil))
		rec := doRequest(t, h, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetStats(t *testing.T) {
	svc := &fakeService{stats: []models.PlatformStats{
		{Platform: "telegram", Sent: 3, Failed: 1},
	}}
	h := newRouter(svc)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/messages/stats", nil))
	rec := doRequest(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats []models.PlatformStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, svc.stats, stats)
}

func TestGetStatsEmptyIsArray(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/messages/stats", nil))
	rec := doRequest(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
