// Package provider calls the upstream speech and language APIs used for
// transcription and translation. Any OpenAI-compatible endpoint works.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	transcriptionsPath  = "/v1/audio/transcriptions"

	translateTemperature = 0.3
	translateMaxTokens   = 1000

	maxResponseBytes = 1 << 20
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrRateLimited is returned when the upstream kept answering 429 after all retries.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrUpstream is returned for any other upstream failure.
	ErrUpstream = errors.New("provider request failed")
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	TranslateModel  string
	TranscribeModel string
	Timeout         time.Duration
	// MaxAttempts bounds the number of tries per call, including the first.
	MaxAttempts int
	// InitialInterval is the first retry delay; it doubles on every retry.
	InitialInterval time.Duration
	HTTPClient      *http.Client
	Logger          *zerolog.Logger
}

// Client talks to the upstream provider.
type Client struct {
	baseURL         string
	apiKey          string
	translateModel  string
	transcribeModel string
	maxAttempts     uint
	initialInterval time.Duration
	http            *http.Client
	log             *zerolog.Logger
}

// New creates a client. A missing API key is not an error here; calls fail with ErrNotConfigured.
func New(opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          opts.APIKey,
		translateModel:  opts.TranslateModel,
		transcribeModel: opts.TranscribeModel,
		maxAttempts:     uint(opts.MaxAttempts),
		initialInterval: opts.InitialInterval,
		http:            opts.HTTPClient,
		log:             opts.Logger,
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Translate asks the chat model to translate text and returns only the translation.
func (c *Client) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Only return the translated text, nothing else.\n\nText: %s",
		sourceLanguage, targetLanguage, text)
	body, err := json.Marshal(chatRequest{
		Model:       c.translateModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: translateTemperature,
		MaxTokens:   translateMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode translate request: %w", err)
	}

	raw, err := c.do(ctx, "translate", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode translate response: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty translate response", ErrUpstream)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio and returns the recognised text. language may be empty.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if filename == "" {
		filename = "recording.webm"
	}

	raw, err := c.do(ctx, "transcribe", func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(audio); err != nil {
			return nil, err
		}
		if err := mw.WriteField("model", c.transcribeModel); err != nil {
			return nil, err
		}
		if language != "" {
			if err := mw.WriteField("language", language); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcriptionsPath, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var resp transcriptionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode transcription response: %w", ErrUpstream, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// do sends the request built by newReq, retrying with exponential backoff while the
// upstream answers 429. Every other failure is returned at once.
func (c *Client) do(ctx context.Context, op string, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		req, err := newReq(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build %s request: %w", op, err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrUpstream, op, err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: read %s response: %w", ErrUpstream, op, err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, op)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s: status %d: %s", ErrUpstream, op, resp.StatusCode, snippet(body)))
		}
		return body, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval
	eb.Multiplier = 2
	eb.MaxInterval = 8 * c.initialInterval

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("retry_in", wait).Msg("provider rate limited, retrying")
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrUpstream) {
			return nil, ctxErr
		}
		return nil, err
	}
	return body, nil
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
