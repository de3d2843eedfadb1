package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/internal/ai"
	"invoicedesk/internal/models"
	"invoicedesk/internal/storage"
)

type fakeFiles map[string][]byte

func (f fakeFiles) Open(_ context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	data, ok := f[id]
	if !ok {
		return nil, models.BlobInfo{}, storage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), models.BlobInfo{ID: id}, nil
}

type fakeGemini struct {
	reply string
	err   error
	got   []byte
}

func (g *fakeGemini) GenerateWithFile(_ context.Context, _, _, _ string, data []byte) (string, error) {
	g.got = data
	return g.reply, g.err
}

type fakeChat struct {
	replies map[string]string
	errs    map[string]error
	tried   []string
}

func (c *fakeChat) Complete(_ context.Context, model, _, _ string) (string, error) {
	c.tried = append(c.tried, model)
	if err := c.errs[model]; err != nil {
		return "", err
	}
	return c.replies[model], nil
}

type fixedText string

func (t fixedText) ExtractText([]byte) (string, error) { return string(t), nil }

func retired(model string) error {
	return &ai.APIError{Backend: "groq", Status: http.StatusBadRequest, Code: "model_decommissioned", Message: model + " has been decommissioned"}
}

const validReply = "```json\n{\"vendor\":{\"name\":\"Acme\"},\"invoice\":{\"number\":\"7\",\"lineItems\":[{\"description\":\"x\",\"unitPrice\":2}]}}\n```"

func TestService_GeminiPath(t *testing.T) {
	gem := &fakeGemini{reply: validReply}
	svc := NewService(fakeFiles{"f1": []byte("%PDF")}, Backends{Gemini: gem, GeminiModel: "gemini-x"})

	res, err := svc.Extract(context.Background(), "f1", BackendGemini)
	require.NoError(t, err)
	assert.Equal(t, "gemini-x", res.Model)
	assert.Equal(t, []byte("%PDF"), gem.got)
	assert.Equal(t, "Acme", res.Invoice.Vendor.Name)
	require.Len(t, res.Invoice.Invoice.LineItems, 1)
	assert.Equal(t, 1.0, res.Invoice.Invoice.LineItems[0].Quantity)
}

func TestService_GroqFallback(t *testing.T) {
	chat := &fakeChat{
		replies: map[string]string{"m2": validReply},
		errs:    map[string]error{"m1": retired("m1")},
	}
	svc := NewService(fakeFiles{"f1": []byte("%PDF")}, Backends{Groq: chat, GroqModels: []string{"m1", "m2", "m3"}, Text: fixedText("INVOICE 7")})

	res, err := svc.Extract(context.Background(), "f1", BackendGroq)
	require.NoError(t, err)
	assert.Equal(t, "m2", res.Model)
	assert.Equal(t, []string{"m1", "m2"}, chat.tried)
	assert.Equal(t, "7", res.Invoice.Invoice.Number)
}

func TestService_GroqAllRetired(t *testing.T) {
	chat := &fakeChat{errs: map[string]error{"m1": retired("m1"), "m2": retired("m2")}}
	svc := NewService(fakeFiles{"f1": []byte("%PDF")}, Backends{Groq: chat, GroqModels: []string{"m1", "m2"}, Text: fixedText("text")})

	_, err := svc.Extract(context.Background(), "f1", BackendGroq)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindBadRequest, e.Kind)
	assert.False(t, e.Retryable)
	assert.Contains(t, e.Message, "all models are unavailable")
	assert.Equal(t, []string{"m1", "m2"}, chat.tried)
}

func TestService_GroqStopsOnOtherError(t *testing.T) {
	chat := &fakeChat{errs: map[string]error{
		"m1": &ai.APIError{Status: http.StatusTooManyRequests, Message: "Rate limit reached"},
	}}
	svc := NewService(fakeFiles{"f1": []byte("%PDF")}, Backends{Groq: chat, GroqModels: []string{"m1", "m2"}, Text: fixedText("text")})

	_, err := svc.Extract(context.Background(), "f1", BackendGroq)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindThrottled, e.Kind)
	assert.True(t, e.Retryable)
	assert.Equal(t, []string{"m1"}, chat.tried)
}

func TestService_NoText(t *testing.T) {
	chat := &fakeChat{}
	svc := NewService(fakeFiles{"f1": []byte("%PDF")}, Backends{Groq: chat, GroqModels: []string{"m1"}, Text: fixedText(" \n\t ")})

	_, err := svc.Extract(context.Background(), "f1", BackendGroq)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindNoText, e.Kind)
	assert.Empty(t, chat.tried)
}

func TestService_Failures(t *testing.T) {
	files := fakeFiles{"f1": []byte("%PDF")}

	t.Run("missing key", func(t *testing.T) {
		_, err := NewService(files, Backends{}).Extract(context.Background(), "f1", BackendGemini)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindConfig, e.Kind)
	})
	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewService(files, Backends{}).Extract(context.Background(), "f1", Backend("claude"))
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindBadRequest, e.Kind)
	})
	t.Run("missing file", func(t *testing.T) {
		svc := NewService(files, Backends{Gemini: &fakeGemini{reply: "{}"}})
		_, err := svc.Extract(context.Background(), "nope", BackendGemini)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindNotFound, e.Kind)
	})
	t.Run("unparseable reply", func(t *testing.T) {
		svc := NewService(files, Backends{Gemini: &fakeGemini{reply: "I cannot read this invoice."}})
		_, err := svc.Extract(context.Background(), "f1", BackendGemini)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindParse, e.Kind)
	})
	t.Run("trailing comma reply", func(t *testing.T) {
		reply := "```json\n{\"vendor\": {\"name\": \"Acme Corp\", \"address\": \"1 Main\"}, \"invoice\": {\"number\": \"INV-9\", \"total\": 120,}}\n```"
		svc := NewService(files, Backends{Gemini: &fakeGemini{reply: reply}})
		res, err := svc.Extract(context.Background(), "f1", BackendGemini)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindParse, e.Kind)
		assert.Empty(t, res.Model)
	})
	t.Run("upstream overload", func(t *testing.T) {
		svc := NewService(files, Backends{Gemini: &fakeGemini{err: &ai.APIError{Status: 503, Message: "overloaded"}}})
		_, err := svc.Extract(context.Background(), "f1", BackendGemini)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindUnavailable, e.Kind)
		assert.True(t, e.Retryable)
	})
	t.Run("opaque error", func(t *testing.T) {
		svc := NewService(files, Backends{Gemini: &fakeGemini{err: errors.New("connection reset")}})
		_, err := svc.Extract(context.Background(), "f1", BackendGemini)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindFailed, e.Kind)
	})
}

// cancelOnOpen cancels the caller's context once the file has been read.
type cancelOnOpen struct {
	fakeFiles
	cancel context.CancelFunc
}

func (c cancelOnOpen) Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	rc, info, err := c.fakeFiles.Open(ctx, id)
	c.cancel()
	return rc, info, err
}

type ctxGemini struct {
	reply    string
	ctxErr   error
	deadline bool
}

func (g *ctxGemini) GenerateWithFile(ctx context.Context, _, _, _ string, _ []byte) (string, error) {
	g.ctxErr = ctx.Err()
	_, g.deadline = ctx.Deadline()
	return g.reply, nil
}

type ctxChat struct {
	reply  string
	ctxErr error
}

func (c *ctxChat) Complete(ctx context.Context, _, _, _ string) (string, error) {
	c.ctxErr = ctx.Err()
	return c.reply, nil
}

func TestService_ModelCallOutlivesCallerCancel(t *testing.T) {
	t.Run("gemini", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		gem := &ctxGemini{reply: validReply}
		svc := NewService(cancelOnOpen{fakeFiles{"f1": []byte("%PDF")}, cancel}, Backends{Gemini: gem, GeminiModel: "gemini-x"})

		res, err := svc.Extract(ctx, "f1", BackendGemini)
		require.NoError(t, err)
		require.Error(t, ctx.Err())
		assert.NoError(t, gem.ctxErr)
		assert.False(t, gem.deadline)
		assert.Equal(t, "Acme", res.Invoice.Vendor.Name)
	})
	t.Run("groq", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		chat := &ctxChat{reply: validReply}
		svc := NewService(cancelOnOpen{fakeFiles{"f1": []byte("%PDF")}, cancel},
			Backends{Groq: chat, GroqModels: []string{"m1"}, Text: fixedText("Invoice 7")})

		res, err := svc.Extract(ctx, "f1", BackendGroq)
		require.NoError(t, err)
		require.Error(t, ctx.Err())
		assert.NoError(t, chat.ctxErr)
		assert.Equal(t, "m1", res.Model)
	})
}

func TestService_ModelCallBoundedByTimeout(t *testing.T) {
	gem := &ctxGemini{reply: validReply}
	svc := NewService(fakeFiles{"f1": []byte("%PDF")}, Backends{Gemini: gem, GeminiModel: "gemini-x", Timeout: time.Minute})

	_, err := svc.Extract(context.Background(), "f1", BackendGemini)
	require.NoError(t, err)
	assert.True(t, gem.deadline)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, BackendGemini, b)
	_, err = ParseBackend("gpt")
	assert.Error(t, err)
}

func TestPDFTextExtractor_Malformed(t *testing.T) {
	_, err := PDFTextExtractor{}.ExtractText([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "a b\nc", normalizeSpace("  a   b \n\n\t c \n"))
	assert.Equal(t, "", normalizeSpace(" \n \n"))
}
