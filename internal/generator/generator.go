package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eventai/internal/models"
	"eventai/internal/prompt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model identifier is configured.
const DefaultModel = "gpt-5-mini"

// ErrRequest wraps every failure that happens while building or sending a
// generation request.
var ErrRequest = errors.New("generation request failed")

// Completer is the part of the completion endpoint client the generator
// needs. *openai.Client satisfies it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configure a Generator.
type Options struct {
	Model       string
	Temperature float32          // Zero leaves the endpoint default
	Template    *prompt.Template // Nil selects prompt.Default
	Location    *time.Location   // Nil uses the time's own location
	Timeout     time.Duration    // Zero means no local timeout
	Now         func() time.Time // Nil uses time.Now
}

// Generator turns a GenerationRequest into ICS text via the completion
// endpoint.
type Generator struct {
	client Completer
	logger *slog.Logger
	opts   Options
}

// NewClient builds a go-openai client for apiKey. An empty baseURL keeps the
// library default.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// New creates a Generator.
func New(logger *slog.Logger, client Completer, opts Options) *Generator {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Template == nil {
		opts.Template = prompt.Default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{client: client, logger: logger, opts: opts}
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.opts.Model
}

// Prompt renders the instruction text for req.
func (g *Generator) Prompt(req models.GenerationRequest) (string, error) {
	data := prompt.NewData(g.opts.Now(), g.opts.Location, req.EventText, req.ReminderText)
	return g.opts.Template.Render(data)
}

// BuildRequest assembles the chat completion request for req: one user
// message holding the prompt text part and, if an image is attached, an
// inline image part.
func (g *Generator) BuildRequest(req models.GenerationRequest) (openai.ChatCompletionRequest, error) {
	text, err := g.Prompt(req)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: text},
	}
	if req.HasImage() {
		url, err := imageDataURL(req.ImagePath)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}

	return openai.ChatCompletionRequest{
		Model:       g.opts.Model,
		Temperature: g.opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}, nil
}

// Generate sends one request and returns the first choice's content
// unmodified. Every failure is returned as a Failure result.
func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (result models.GenerationResult) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Completion call panicked", "panic", r)
			result = models.Failure(fmt.Errorf("%w: %v", ErrRequest, r))
		}
	}()

	chatReq, err := g.BuildRequest(req)
	if err != nil {
		return models.Failure(fmt.Errorf("%w: %w", ErrRequest, err))
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	g.logger.Info("Sending generation request.", "model", g.opts.Model, "image", req.HasImage())
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)
	if err != nil {
		g.logger.Error("Completion endpoint returned an error", "error", err, "duration", duration)
		return models.Failure(fmt.Errorf("%w: %w", ErrRequest, err))
	}
	if len(resp.Choices) == 0 {
		g.logger.Error("Completion response has no choices", "duration", duration)
		return models.Failure(fmt.Errorf("%w: malformed response: no choices returned", ErrRequest))
	}

	text := resp.Choices[0].Message.Content
	g.logger.Info("Generation finished.", "duration", duration, "bytes", len(text), "totalTokens", resp.Usage.TotalTokens)
	return models.Success(text)
}

// imageDataURL reads path fully and encodes it as a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType, err := imageMIMEType(path, data)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// imageMIMEType sniffs the content first and falls back to the extension for
// formats the sniffer does not know (e.g. HEIC).
func imageMIMEType(path string, data []byte) (string, error) {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct, nil
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(ct, "image/") {
		return ct, nil
	}
	return "", fmt.Errorf("%s is not an image", filepath.Base(path))
}
