package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/logger"
	"github.com/KaramelBytes/datalens-cli/internal/session"
)

type fakePrinter struct{ err error }

func (p fakePrinter) PDF(ctx context.Context, fileName, report string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.4 " + fileName), nil
}

func newTestServer(t *testing.T, reply string, printer PDFPrinter) (*Server, *int32) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var calls int32
	rt := ai.RuntimeFunc(func(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
		atomic.AddInt32(&calls, 1)
		return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: reply}}}}, nil
	})
	sess := session.New(session.Config{Runtime: rt, Model: "test-model", Logger: logger.Nop()})
	return New(Options{Session: sess, Printer: printer, Logger: logger.Nop()}), &calls
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUploadAndSummary(t *testing.T) {
	s, _ := newTestServer(t, "report", nil)

	w := do(t, s, uploadRequest(t, "sales.csv", "month,revenue\n2024-01-01,100\n2024-02-01,120\n"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	body := decode(t, w)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "sales.csv", summary["fileName"])
	assert.Equal(t, float64(2), summary["rowCount"])

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	types := body["summary"].(map[string]any)["columnTypes"].(map[string]any)
	assert.Equal(t, "date", types["month"])
	assert.Equal(t, "numeric", types["revenue"])
	prof := body["profile"].([]any)
	require.Len(t, prof, 2)
	assert.NotNil(t, prof[1].(map[string]any)["numeric"])
}

func TestUploadUnsupportedFormat(t *testing.T) {
	s, _ := newTestServer(t, "report", nil)
	w := do(t, s, uploadRequest(t, "notes.txt", "hello"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, string(apperr.KindUnsupportedFormat), decode(t, w)["kind"])
}

func TestUploadMissingFile(t *testing.T) {
	s, _ := newTestServer(t, "report", nil)
	w := do(t, s, httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeWithoutDataset(t *testing.T) {
	s, calls := newTestServer(t, "report", nil)
	w := do(t, s, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(apperr.KindNoData), decode(t, w)["kind"])
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestAnalyzeRegenerateAndReport(t *testing.T) {
	s, calls := newTestServer(t, "# Report\n\nRevenue **rose**.", nil)
	require.Equal(t, http.StatusOK, do(t, s, uploadRequest(t, "sales.csv", "a,b\n1,2\n")).Code)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "<p><h1>Report</h1></p><p>Revenue <strong>rose</strong>.</p>", body["html"])

	req := httptest.NewRequest(http.MethodPost, "/api/regenerate", strings.NewReader(`{"directive":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperr.KindEmptyDirective), decode(t, w)["kind"])

	req = httptest.NewRequest(http.MethodPost, "/api/regenerate", strings.NewReader(`{"directive":"focus on column b"}`))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decode(t, w)["state"].(map[string]any)
	_, hasDirective := state["directive"]
	assert.False(t, hasDirective)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetDirective(t *testing.T) {
	s, _ := newTestServer(t, "r", nil)
	req := httptest.NewRequest(http.MethodPut, "/api/directive", strings.NewReader(`{"directive":"more on trends"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "more on trends", decode(t, w)["directive"])

	w = do(t, s, httptest.NewRequest(http.MethodPut, "/api/directive", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t, "## Findings", fakePrinter{})
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, do(t, s, uploadRequest(t, "q1 sales.csv", "a\n1\n")).Code)
	require.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodPost, "/api/analyze", nil)).Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=html", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Data Analysis Report - q1 sales.csv</title>")
	assert.Contains(t, w.Header().Get("Content-Disposition"), `"q1 sales-report.html"`)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=docx", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportUnavailable(t *testing.T) {
	s, _ := newTestServer(t, "text", fakePrinter{err: apperr.New(apperr.KindExportUnavailable, "no browser")})
	require.Equal(t, http.StatusOK, do(t, s, uploadRequest(t, "a.csv", "a\n1\n")).Code)
	require.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodPost, "/api/analyze", nil)).Code)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=pdf", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(apperr.KindExportUnavailable), decode(t, w)["kind"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(session.ErrSuperseded))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(apperr.New(apperr.KindBusy, "busy")))
	assert.Equal(t, http.StatusBadGateway, statusFor(apperr.New(apperr.KindGenerationEmpty, "empty")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperr.New(apperr.KindParse, "bad")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
