package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"message_dispatch/internal/auth"
	"message_dispatch/internal/models"
	"message_dispatch/internal/sender"
	"message_dispatch/internal/service"
	"message_dispatch/internal/storage"
)

const maxUploadBytes = 10 << 20

// MessageService lists the service-layer methods the handlers need.
type MessageService interface {
	Dispatch(ctx context.Context, req service.DispatchRequest) (*models.Message, error)
	ListMessages(ctx context.Context, ownerID string, limit, offset int) (*models.MessageListResponse, error)
	Stats(ctx context.Context, ownerID string) ([]models.PlatformStats, error)
}

type MessageHandler struct {
	service MessageService
}

func NewMessageHandler(service MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

type sendMessageRequest struct {
	Platform   string   `json:"platform"`
	Recipients []string `json:"recipients"`
	Content    string   `json:"content"`
}

// POST /api/messages
// Accepts JSON, or multipart/form-data when a file is attached.
// 201: persisted message record
// 400: invalid input / unsupported platform
// 500: processing failed
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := service.DispatchRequest{OwnerID: id.UserID}

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/") {
		if err := h.parseMultipart(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var body sendMessageRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		req.Platform = body.Platform
		req.Recipients = body.Recipients
		req.Content = body.Content
	}

	msg, err := h.service.Dispatch(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, sender.ErrUnsupportedPlatform):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "processing failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) parseMultipart(r *http.Request, req *service.DispatchRequest) error {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return errors.New("invalid multipart form: " + err.Error())
	}

	req.Platform = strings.TrimSpace(r.FormValue("platform"))
	req.Content = r.FormValue("content")

	// either repeated `recipients` fields or one comma-separated value
	for _, raw := range r.MultipartForm.Value["recipients"] {
		for _, rcpt := range strings.Split(raw, ",") {
			if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
				req.Recipients = append(req.Recipients, rcpt)
			}
		}
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return errors.New("invalid file field: " + err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return errors.New("read file: " + err.Error())
	}

	req.File = &storage.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return nil
}

// GET /api/messages?limit=&offset=
// 200: { "items": [...], "from_cache": bool, "pagination": {...} }
// 400: invalid params
// 500: processing failed
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	offset := 0
	if offsetRaw := strings.TrimSpace(r.URL.Query().Get("offset")); offsetRaw != "" {
		n, err := strconv.Atoi(offsetRaw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	resp, err := h.service.ListMessages(r.Context(), id.UserID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "processing failed")
		}
		return
	}

	if resp.FromCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/messages/stats
// 200: [ { "platform": "...", "sent": n, "failed": n }, ... ]
func (h *MessageHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.service.Stats(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	if stats == nil {
		stats = []models.PlatformStats{}
	}

	writeJSON(w, http.StatusOK, stats)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	// reject a second JSON object in the body
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("only one JSON object is allowed")
	}

	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
