package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voicelink/internal/metrics"
	"github.com/vovakirdan/voicelink/internal/provider"
)

const (
	maxTranslateChars = 5000
	maxAudioBytes     = 25 << 20
)

// ProviderHandlers proxies translation and transcription to the upstream provider.
type ProviderHandlers struct {
	provider Provider
	metrics  *metrics.Metrics
	log      *zerolog.Logger
}

// NewProviderHandlers creates provider handlers. A nil provider answers 503.
func NewProviderHandlers(p Provider, m *metrics.Metrics, logger *zerolog.Logger) *ProviderHandlers {
	return &ProviderHandlers{
		provider: p,
		metrics:  m,
		log:      logger,
	}
}

// TranslateRequest is the body of POST /api/translate.
type TranslateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// TranslateResponse carries the translated text.
type TranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// TranscribeResponse carries the recognised text.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// Translate handles text translation.
// POST /api/translate
func (h *ProviderHandlers) Translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.SourceLanguage == "" || req.TargetLanguage == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing required fields"})
		return
	}
	if len([]rune(req.Text)) > maxTranslateChars {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text too long"})
		return
	}
	if h.provider == nil {
		h.unavailable(c, "translate")
		return
	}

	out, err := h.provider.Translate(c.Request.Context(), req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		h.upstreamError(c, "translate", "failed to translate text", err)
		return
	}
	h.record("translate", "ok")
	c.JSON(http.StatusOK, TranslateResponse{TranslatedText: out})
}

// Transcribe handles speech-to-text for an uploaded recording.
// POST /api/transcribe (multipart: audio, language)
func (h *ProviderHandlers) Transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioBytes+(1<<20))

	fh, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "audio file is required"})
		return
	}
	if fh.Size > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "audio file too large"})
		return
	}
	if h.provider == nil {
		h.unavailable(c, "transcribe")
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable audio file"})
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(io.LimitReader(f, maxAudioBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable audio file"})
		return
	}

	text, err := h.provider.Transcribe(c.Request.Context(), audio, fh.Filename, c.PostForm("language"))
	if err != nil {
		h.upstreamError(c, "transcribe", "failed to transcribe audio", err)
		return
	}
	h.record("transcribe", "ok")
	c.JSON(http.StatusOK, TranscribeResponse{Text: text})
}

func (h *ProviderHandlers) unavailable(c *gin.Context, op string) {
	h.record(op, "unavailable")
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "provider not configured"})
}

func (h *ProviderHandlers) upstreamError(c *gin.Context, op, msg string, err error) {
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		h.unavailable(c, op)
	case errors.Is(err, provider.ErrRateLimited):
		h.record(op, "rate_limited")
		h.log.Warn().Err(err).Str("op", op).Msg("provider rate limit exhausted")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited, try again later"})
	default:
		h.record(op, "error")
		h.log.Error().Err(err).Str("op", op).Msg("provider request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

func (h *ProviderHandlers) record(op, outcome string) {
	if h.metrics != nil {
		h.metrics.ProviderRequest(op, outcome)
	}
}
