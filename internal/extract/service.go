package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"invoicedesk/internal/ai"
	"invoicedesk/internal/config"
	"invoicedesk/internal/logging"
	"invoicedesk/internal/models"
)

// Backend names an extraction path.
type Backend string

const (
	// BackendGemini sends the PDF bytes to a multimodal model.
	BackendGemini Backend = "gemini"
	// BackendGroq sends locally extracted text to a list of text models.
	BackendGroq Backend = "groq"
)

// ParseBackend validates a backend name from a request.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendGemini, BackendGroq:
		return b, nil
	default:
		return "", newError(KindBadRequest, false, fmt.Sprintf("unknown model %q (want %q or %q)", name, BackendGemini, BackendGroq), nil)
	}
}

// FileSource resolves a blob id to its bytes.
type FileSource interface {
	Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error)
}

// FileGenerator is a multimodal model client.
type FileGenerator interface {
	GenerateWithFile(ctx context.Context, model, prompt, mimeType string, data []byte) (string, error)
}

// ChatCompleter is a text model client.
type ChatCompleter interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Backends wires the model clients. A nil client means its API key is not configured.
// Timeout bounds each model call; zero leaves the bound to the client.
type Backends struct {
	Gemini      FileGenerator
	GeminiModel string
	Groq        ChatCompleter
	GroqModels  []string
	Text        TextExtractor
	Timeout     time.Duration
}

// Result is a successful extraction and the model that produced it.
type Result struct {
	Invoice models.NormalizedInvoice
	Model   string
}

// Service turns a stored PDF into a normalized invoice.
type Service struct {
	files    FileSource
	backends Backends
	log      *logrus.Logger
}

// NewService creates a Service. Text defaults to PDFTextExtractor.
func NewService(files FileSource, backends Backends) *Service {
	if backends.Text == nil {
		backends.Text = PDFTextExtractor{}
	}
	backends.GroqModels = append([]string(nil), backends.GroqModels...)
	return &Service{files: files, backends: backends, log: logging.L()}
}

// BackendsFromConfig builds clients for every backend whose API key is present.
func BackendsFromConfig(cfg *config.Config) Backends {
	b := Backends{GeminiModel: cfg.GeminiModel, GroqModels: cfg.GroqModels, Timeout: cfg.AITimeout}
	if cfg.GeminiAPIKey != "" {
		if c, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.AITimeout); err == nil {
			b.Gemini = c
		}
	}
	if cfg.GroqAPIKey != "" {
		if c, err := ai.NewChatClient("groq", cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.AITimeout); err == nil {
			b.Groq = c
		}
	}
	return b
}

// Extract runs one extraction. Every failure is an *Error.
// Cancelling ctx stops the file read but not a model call already in flight.
func (s *Service) Extract(ctx context.Context, fileID string, backend Backend) (Result, error) {
	if err := s.checkConfigured(backend); err != nil {
		return Result{}, err
	}
	data, err := s.readFile(ctx, fileID)
	if err != nil {
		return Result{}, Classify(err)
	}

	var (
		reply string
		model string
	)
	aiCtx := context.WithoutCancel(ctx)
	switch backend {
	case BackendGemini:
		model = s.backends.GeminiModel
		callCtx, cancel := s.callContext(aiCtx)
		reply, err = s.backends.Gemini.GenerateWithFile(callCtx, model, instructionPrompt, "application/pdf", data)
		cancel()
	case BackendGroq:
		reply, model, err = s.completeWithFallback(aiCtx, data)
	}
	if err != nil {
		cerr := Classify(err)
		s.log.WithFields(logrus.Fields{
			"fileId": fileID, "backend": backend, "model": model,
			"kind": cerr.Kind, "retryable": cerr.Retryable,
		}).WithError(err).Warn("extract.failed")
		return Result{}, cerr
	}

	parsed, err := ExtractJSON(reply)
	if err != nil {
		s.log.WithFields(logrus.Fields{"fileId": fileID, "model": model}).WithError(err).Warn("extract.unparseable")
		return Result{}, Classify(err)
	}
	return Result{Invoice: Normalize(parsed), Model: model}, nil
}

func (s *Service) checkConfigured(backend Backend) error {
	switch backend {
	case BackendGemini:
		if s.backends.Gemini == nil {
			return newError(KindConfig, false, "GEMINI_API_KEY is not configured", nil)
		}
	case BackendGroq:
		if s.backends.Groq == nil {
			return newError(KindConfig, false, "GROQ_API_KEY is not configured", nil)
		}
		if len(s.backends.GroqModels) == 0 {
			return newError(KindConfig, false, "no groq models are configured", nil)
		}
	default:
		_, err := ParseBackend(string(backend))
		return err
	}
	return nil
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.backends.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.backends.Timeout)
}

func (s *Service) readFile(ctx context.Context, fileID string) ([]byte, error) {
	rc, _, err := s.files.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, config.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return data, nil
}

// completeWithFallback walks the configured models, passing over retired ones.
func (s *Service) completeWithFallback(ctx context.Context, data []byte) (string, string, error) {
	text, err := s.backends.Text.ExtractText(data)
	if err != nil {
		return "", "", newError(KindBadRequest, false, "could not read the PDF", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", "", newError(KindNoText, false, "no extractable text in PDF; it may be a scanned image, try the gemini model", nil)
	}

	prompt := textPrompt(text)
	call := func(ctx context.Context, model string) (string, error) {
		s.log.WithField("model", model).Debug("extract.model_attempt")
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		return s.backends.Groq.Complete(callCtx, model, instructionPrompt, prompt)
	}
	skip := func(err error) bool {
		if IsRetired(err) {
			s.log.WithError(err).Info("extract.model_retired")
			return true
		}
		return false
	}

	reply, model, err := FirstSuccess(ctx, s.backends.GroqModels, call, skip)
	if errors.Is(err, ErrAllSkipped) {
		return "", "", newError(KindBadRequest, false, "all models are unavailable", err)
	}
	return reply, model, err
}
