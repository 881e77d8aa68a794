package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/leo-hammett/anthist-sub000/internal/engagement"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
)

// Batch capture constraints
const (
	MaxBatchSize       = 500
	MaxEngagementBytes = 4 << 20
	ContentTypeJSON    = "application/json"
	ContentTypeCBOR    = "application/cbor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins from CORS configuration
		return true
	},
}

// EngagementBatchRequest represents a batch of captured events. The same
// structure decodes from JSON and CBOR bodies; field names follow the
// client telemetry schema.
type EngagementBatchRequest struct {
	Events []*engagement.Event `json:"events" cbor:"events"`
}

// EngagementBatchResponse reports per-batch capture counts. Invalid
// events are dropped individually; the batch itself is not rejected.
type EngagementBatchResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// streamAck is the per-message acknowledgment sent over the WebSocket.
type streamAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// EngagementHandlers holds dependencies for telemetry capture handlers.
type EngagementHandlers struct {
	repo  engagement.Repository
	stats *engagement.CaptureStats
}

// NewEngagementHandlers creates a new EngagementHandlers instance.
func NewEngagementHandlers(repo engagement.Repository, stats *engagement.CaptureStats) *EngagementHandlers {
	return &EngagementHandlers{repo: repo, stats: stats}
}

// CaptureBatch handles POST /engagements - records a batch of
// reading-session events. Accepts JSON and CBOR request bodies.
func (h *EngagementHandlers) CaptureBatch(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxEngagementBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body exceeds 4 MiB")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Failed to read request body")
		return
	}

	var req EngagementBatchRequest
	switch mediaType(r.Header.Get("Content-Type")) {
	case ContentTypeCBOR:
		if err := cbor.Unmarshal(body, &req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid CBOR in request body")
			return
		}
	case ContentTypeJSON, "":
		if err := json.Unmarshal(body, &req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
			return
		}
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedMedia)
		WriteError(w, ctx, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, "Content-Type must be application/json or application/cbor")
		return
	}

	if len(req.Events) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "events are required")
		return
	}
	if len(req.Events) > MaxBatchSize {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("batch must not exceed %d events", MaxBatchSize))
		return
	}

	accepted := make([]*engagement.Event, 0, len(req.Events))
	rejected := 0
	for _, event := range req.Events {
		if event == nil {
			rejected++
			continue
		}
		if err := event.Validate(); err != nil {
			slog.WarnContext(r.Context(), "rejected engagement event", "error", err, "content_id", event.ContentID)
			rejected++
			continue
		}
		event.OwnerID = userID
		accepted = append(accepted, event)
	}

	if len(accepted) > 0 {
		if err := h.repo.RecordBatch(accepted); err != nil {
			slog.ErrorContext(r.Context(), "failed to record engagement batch", "error", err, "user_id", userID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record engagement events")
			return
		}
	}

	h.stats.RecordAccepted(len(accepted))
	h.stats.RecordRejected(rejected)

	response := EngagementBatchResponse{
		Accepted: len(accepted),
		Rejected: rejected,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}

// CaptureStream handles POST /engagements/stream - upgrades to a
// WebSocket session streaming one event per message. Text frames carry
// JSON events, binary frames carry CBOR events; each message is
// acknowledged individually.
func (h *EngagementHandlers) CaptureStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx := middleware.SetErrorCode(ctx, ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection",
			"error", err,
			"user_id", userID,
		)
		return
	}

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "engagement stream opened",
		"user_id", userID,
		"request_id", requestID,
	)

	defer func() {
		conn.Close()
		slog.InfoContext(ctx, "engagement stream closed",
			"user_id", userID,
			"request_id", requestID,
		)
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "engagement stream closed unexpectedly",
					"error", err,
					"user_id", userID,
				)
			}
			break
		}

		var event engagement.Event
		var decodeErr error
		switch messageType {
		case websocket.BinaryMessage:
			decodeErr = cbor.Unmarshal(data, &event)
		case websocket.TextMessage:
			decodeErr = json.Unmarshal(data, &event)
		default:
			continue
		}
		if decodeErr != nil {
			h.stats.RecordRejected(1)
			if err := h.writeAck(conn, streamAck{Status: "rejected", Message: "malformed event"}); err != nil {
				break
			}
			continue
		}

		if err := event.Validate(); err != nil {
			h.stats.RecordRejected(1)
			if ackErr := h.writeAck(conn, streamAck{Status: "rejected", Message: err.Error()}); ackErr != nil {
				break
			}
			continue
		}

		event.OwnerID = userID
		if err := h.repo.Record(&event); err != nil {
			slog.ErrorContext(ctx, "failed to record streamed event", "error", err, "user_id", userID)
			h.stats.RecordRejected(1)
			if ackErr := h.writeAck(conn, streamAck{Status: "rejected", Message: "storage failure"}); ackErr != nil {
				break
			}
			continue
		}

		h.stats.RecordAccepted(1)
		if err := h.writeAck(conn, streamAck{Status: "ok"}); err != nil {
			break
		}
	}
}

func (h *EngagementHandlers) writeAck(conn *websocket.Conn, ack streamAck) error {
	return conn.WriteJSON(ack)
}

// mediaType extracts the media type from a Content-Type header,
// discarding parameters like charset.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
