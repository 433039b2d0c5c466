package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/rag/response"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocumentService struct {
	uploadErr   error
	uploadPath  string
	uploadBytes []byte
	events      []response.Event
	streamErr   error
	deleted     []string
	sessions    int
	lastChat    *dto.ChatDocumentRequest
}

func (f *fakeDocumentService) Upload(_ context.Context, filename, path string) (*dto.UploadDocumentResponse, error) {
	f.uploadPath = path
	f.uploadBytes, _ = os.ReadFile(path)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &dto.UploadDocumentResponse{SessionId: "sid-1", Filename: filename, Pages: 2}, nil
}

func (f *fakeDocumentService) stream(ctx context.Context) (<-chan response.Event, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan response.Event)
	go func() {
		defer close(out)
		for _, ev := range f.events {
			if !response.Emit(ctx, out, ev) {
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeDocumentService) Analyze(ctx context.Context, _ *dto.AnalyzeDocumentRequest) (<-chan response.Event, error) {
	return f.stream(ctx)
}

func (f *fakeDocumentService) Chat(ctx context.Context, req *dto.ChatDocumentRequest) (<-chan response.Event, error) {
	f.lastChat = req
	return f.stream(ctx)
}

func (f *fakeDocumentService) DeleteSession(_ context.Context, id string) error {
	if id != "sid-1" {
		return apperror.Newf(apperror.KindSessionNotFound, "session %q not found", id)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocumentService) SessionCount() int { return f.sessions }

type fakeCorpusService struct {
	res      *dto.AskResponse
	err      error
	count    int
	countErr error
	lastReq  *dto.AskRequest
}

func (f *fakeCorpusService) Ask(_ context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	f.lastReq = req
	return f.res, f.err
}

func (f *fakeCorpusService) IndexedChunks(context.Context) (int, error) {
	return f.count, f.countErr
}

func newApp(doc *fakeDocumentService, corpus *fakeCorpusService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(logger.NewNopLogger()))
	api := app.Group("/api")
	NewDocumentController(doc).RegisterRoutes(api)
	NewCorpusController(corpus).RegisterRoutes(api)
	NewHealthController(doc, corpus, "sqlite", "papers").RegisterRoutes(api)
	return app
}

func jsonRequest(method, url string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/document/v1/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadSuccess(t *testing.T) {
	doc := &fakeDocumentService{}
	app := newApp(doc, &fakeCorpusService{})

	resp, err := app.Test(multipartUpload(t, "paper.pdf", []byte("%PDF-1.4 fake")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "sid-1", data["session_id"])
	assert.Equal(t, "paper.pdf", data["filename"])

	assert.Equal(t, []byte("%PDF-1.4 fake"), doc.uploadBytes)
	_, statErr := os.Stat(doc.uploadPath)
	assert.True(t, os.IsNotExist(statErr), "temp upload must be removed")
}

func TestUploadErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{"unsupported", apperror.New(apperror.KindUnsupportedFormat, "only PDF uploads are supported"), 415, "UNSUPPORTED_FORMAT", "only PDF uploads are supported"},
		{"no text", apperror.New(apperror.KindNoExtractableText, "no extractable text in scan.pdf even after OCR"), 400, "NO_EXTRACTABLE_TEXT", "no extractable text in scan.pdf even after OCR"},
		{"embedding", apperror.New(apperror.KindEmbeddingError, "embedding backend unavailable"), 502, "EMBEDDING_ERROR", "embedding backend unavailable"},
		{"internal", errors.New("disk on fire"), 500, "INTERNAL", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(&fakeDocumentService{uploadErr: tt.err}, &fakeCorpusService{})

			resp, err := app.Test(multipartUpload(t, "x.pdf", []byte("data")), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantType, body["error_type"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	app := newApp(&fakeDocumentService{}, &fakeCorpusService{})

	req := httptest.NewRequest(http.MethodPost, "/api/document/v1/upload", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatStreamsSSE(t *testing.T) {
	doc := &fakeDocumentService{events: []response.Event{
		{Type: response.EventToken, Token: "Hello"},
		{Type: response.EventToken, Token: " world"},
		{Type: response.EventEnd},
	}}
	app := newApp(doc, &fakeCorpusService{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/document/v1/chat", dto.ChatDocumentRequest{
		SessionId: "sid-1",
		Query:     "hi?",
		History:   []dto.ChatTurn{{Role: "user", Content: "earlier"}},
	}), -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t,
		"data: {\"token\":\"Hello\"}\n\ndata: {\"token\":\" world\"}\n\ndata: [DONE]\n\n",
		readBody(t, resp))
	require.NotNil(t, doc.lastChat)
	assert.Len(t, doc.lastChat.History, 1)
}

func TestChatStreamError(t *testing.T) {
	doc := &fakeDocumentService{events: []response.Event{
		{Type: response.EventToken, Token: "Par"},
		{Type: response.EventError, Err: apperror.New(apperror.KindModelGenerationError, "model generation failed")},
	}}
	app := newApp(doc, &fakeCorpusService{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/document/v1/chat", dto.ChatDocumentRequest{
		SessionId: "sid-1",
		Query:     "q",
	}), -1)
	require.NoError(t, err)

	body := readBody(t, resp)
	assert.True(t, strings.HasPrefix(body, "data: {\"token\":\"Par\"}\n\n"))
	assert.Contains(t, body, "event: error\ndata: {\"message\":\"model generation failed\"}\n\n")
	assert.NotContains(t, body, "[DONE]")
}

func TestChatUnknownSessionIs404(t *testing.T) {
	doc := &fakeDocumentService{streamErr: apperror.New(apperror.KindSessionNotFound, "session \"nope\" not found")}
	app := newApp(doc, &fakeCorpusService{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/document/v1/chat", dto.ChatDocumentRequest{
		SessionId: "nope",
		Query:     "q",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, resp)["error_type"])
}

func TestChatValidation(t *testing.T) {
	app := newApp(&fakeDocumentService{}, &fakeCorpusService{})

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing query", map[string]interface{}{"session_id": "sid-1"}},
		{"missing session", map[string]interface{}{"query": "q"}},
		{"bad role", map[string]interface{}{"session_id": "sid-1", "query": "q", "history": []map[string]string{{"role": "system", "content": "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/document/v1/chat", tt.body), -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_REQUEST", decode(t, resp)["error_type"])
		})
	}
}

func TestAnalyzeStreamsFieldsWithoutDone(t *testing.T) {
	doc := &fakeDocumentService{events: []response.Event{
		{Type: response.EventField, Key: "Title", Value: "Attention"},
		{Type: response.EventField, Key: "Limitations", Value: "Not found"},
		{Type: response.EventEnd},
	}}
	app := newApp(doc, &fakeCorpusService{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/document/v1/analyze", dto.AnalyzeDocumentRequest{SessionId: "sid-1"}), -1)
	require.NoError(t, err)

	assert.Equal(t,
		"data: {\"key\":\"Title\",\"value\":\"Attention\"}\n\ndata: {\"key\":\"Limitations\",\"value\":\"Not found\"}\n\n",
		readBody(t, resp))
}

func TestDeleteSession(t *testing.T) {
	doc := &fakeDocumentService{}
	app := newApp(doc, &fakeCorpusService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/document/v1/session/sid-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"sid-1"}, doc.deleted)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/document/v1/session/other", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAsk(t *testing.T) {
	corpus := &fakeCorpusService{res: &dto.AskResponse{
		Answer:  "Because of attention.",
		Sources: []dto.SourceResponse{{Source: "a.pdf", PageNumber: 3, Score: 0.9}},
	}}
	app := newApp(&fakeDocumentService{}, corpus)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/corpus/v1/ask", map[string]interface{}{"query": "why?", "k": 2}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "Because of attention.", data["answer"])
	assert.Len(t, data["sources"], 1)
	require.NotNil(t, corpus.lastReq.K)
	assert.Equal(t, 2, *corpus.lastReq.K)
}

func TestAskInvalidQuery(t *testing.T) {
	corpus := &fakeCorpusService{err: apperror.New(apperror.KindInvalidQuery, "k must be positive, got 0")}
	app := newApp(&fakeDocumentService{}, corpus)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/corpus/v1/ask", map[string]interface{}{"query": "why?", "k": 0}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_QUERY", decode(t, resp)["error_type"])
}

func TestHealth(t *testing.T) {
	app := newApp(&fakeDocumentService{sessions: 3}, &fakeCorpusService{count: 42})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.EqualValues(t, 3, data["sessions"])
	assert.EqualValues(t, 42, data["indexed_chunks"])
	assert.Equal(t, "papers", data["collection"])
}

func TestHealthDegraded(t *testing.T) {
	app := newApp(&fakeDocumentService{}, &fakeCorpusService{countErr: errors.New("db down")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	require.NoError(t, err)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
}
