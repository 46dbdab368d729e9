package analyses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sorot-backend/internal/shared/server/middleware"
	"sorot-backend/internal/shared/server/respond"
	"sorot-backend/internal/synopsis"
	"sorot-backend/internal/trailer"
)

// streamWindow caps how long one SSE connection is served before the client
// must reconnect. Matches the client-side polling give-up window.
const streamWindow = 5 * time.Minute

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Svc:     svc,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.startAnalysis)
	rg.GET("/status", h.getStatus)
	rg.GET("/status/stream", h.streamStatus)
}

type analyzeRequest struct {
	PDFData    string `json:"pdfData"`
	TrailerURL string `json:"trailerUrl"`
	InputType  string `json:"inputType"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Missing required fields: pdfData and trailerUrl are required")
		return
	}
	if req.PDFData == "" || req.TrailerURL == "" {
		respond.Error(c, http.StatusBadRequest, "Missing required fields: pdfData and trailerUrl are required")
		return
	}
	kind := req.InputType
	if kind == "" {
		kind = synopsis.KindFile
	}
	if kind != synopsis.KindFile && kind != synopsis.KindText {
		respond.Error(c, http.StatusBadRequest, "inputType must be 'file' or 'text'")
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysisID, err := h.Svc.Start(ctx, StartRequest{
		Payload:    req.PDFData,
		Kind:       kind,
		TrailerURL: req.TrailerURL,
	})
	if err != nil {
		if errors.Is(err, trailer.ErrInvalidURL) {
			respond.Error(c, http.StatusBadRequest, "Invalid YouTube URL format")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Set("analysisId", analysisID)
	respond.OK(c, gin.H{
		"analysisId": analysisID,
		"status":     StatusProcessing,
		"message":    "Analysis started successfully",
	})
}

func (h *Handler) getStatus(c *gin.Context) {
	analysisID := c.Query("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "Analysis ID required")
		return
	}
	if !h.limiter.Allow(c.ClientIP(), analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "Too many requests, slow down")
		return
	}

	c.Set("analysisId", analysisID)
	progress, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "Analysis not found")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.OK(c, progress)
}

// streamStatus serves progress as Server-Sent Events until the run settles,
// the window elapses, or the client disconnects.
func (h *Handler) streamStatus(c *gin.Context) {
	analysisID := c.Query("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "Analysis ID required")
		return
	}

	if _, err := h.Svc.Get(c.Request.Context(), analysisID); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "Analysis not found")
			return
		}
		respond.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Set("analysisId", analysisID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	deadline := time.Now().Add(streamWindow)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		progress, err := h.Svc.Get(c.Request.Context(), analysisID)
		if err != nil {
			return false
		}

		payload, err := json.Marshal(progress)
		if err != nil {
			return false
		}
		c.SSEvent("progress", string(payload))

		if progress.Terminal() || time.Now().After(deadline) {
			return false
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticker.C:
			return true
		}
	})
}
