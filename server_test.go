package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/ragqa/rag"
	"github.com/finsight/ragqa/readers"
)

type fakePipeline struct {
	answer       rag.Answer
	lastQuestion string
	lastHistory  []rag.Turn
	docs         []rag.DocumentInfo
	chunks       int
}

func (f *fakePipeline) Answer(_ context.Context, question string, history []rag.Turn) rag.Answer {
	f.lastQuestion = question
	f.lastHistory = history
	return f.answer
}

func (f *fakePipeline) Documents() []rag.DocumentInfo { return f.docs }

func (f *fakePipeline) DocumentCount(_ context.Context) int { return f.chunks }

type fakeSyncer struct {
	calls int
}

func (f *fakeSyncer) Sync(_ context.Context) error {
	f.calls++
	return nil
}

func newTestServer(t *testing.T, p *fakePipeline, reg *fakeSyncer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := NewApiServer(p, reg, t.TempDir(), []readers.FileReader{&readers.TxtFileReader{}},
		[]string{"http://localhost:3000"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv.Router()
}

func Test_ApiServer_Health(t *testing.T) {
	router := newTestServer(t, &fakePipeline{chunks: 7}, &fakeSyncer{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","documents":7}`, rec.Body.String())
}

func Test_ApiServer_Chat(t *testing.T) {
	p := &fakePipeline{answer: rag.Answer{Answer: "Revenue was $1.2 billion."}}
	router := newTestServer(t, p, &fakeSyncer{})

	body := `{"question":"What was the revenue?","history":[{"role":"user","content":"hi"}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What was the revenue?", p.lastQuestion)
	require.Len(t, p.lastHistory, 1)
	assert.Equal(t, "user", p.lastHistory[0].Role)

	var got rag.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Revenue was $1.2 billion.", got.Answer)
}

func Test_ApiServer_ChatValidation(t *testing.T) {
	router := newTestServer(t, &fakePipeline{}, &fakeSyncer{})

	var cases = []struct {
		body string
	}{
		{body: `not json`},
		{body: `{}`},
		{body: `{"question":"   "}`},
	}

	for i, c := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d", i)
	}
}

func Test_ApiServer_Documents(t *testing.T) {
	p := &fakePipeline{docs: []rag.DocumentInfo{
		{Source: "a.txt", Chunks: 3},
		{Source: "b.txt", Chunks: 2},
	}}
	router := newTestServer(t, p, &fakeSyncer{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"documents": [
			{"source":"a.txt","chunks":3},
			{"source":"b.txt","chunks":2}
		],
		"count": 2
	}`, rec.Body.String())
}

func Test_ApiServer_Chunks(t *testing.T) {
	router := newTestServer(t, &fakePipeline{chunks: 42}, &fakeSyncer{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chunks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":42}`, rec.Body.String())
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func Test_ApiServer_Upload(t *testing.T) {
	p := &fakePipeline{docs: []rag.DocumentInfo{{Source: "report.txt", Chunks: 3}}}
	reg := &fakeSyncer{}
	router := newTestServer(t, p, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "report.txt", "Total revenue was $1.2 billion."))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, reg.calls)
	assert.JSONEq(t, `{"source":"report.txt","chunks":3}`, rec.Body.String())
}

func Test_ApiServer_UploadUnsupportedType(t *testing.T) {
	reg := &fakeSyncer{}
	router := newTestServer(t, &fakePipeline{}, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "malware.exe", "nope"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, reg.calls)
}

func Test_ApiServer_UploadWithoutFile(t *testing.T) {
	router := newTestServer(t, &fakePipeline{}, &fakeSyncer{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_corsMiddleware(t *testing.T) {
	router := newTestServer(t, &fakePipeline{}, &fakeSyncer{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
