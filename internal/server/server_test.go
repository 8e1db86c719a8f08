package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/analysis"
	"github.com/joseph-ayodele/medilink/internal/catalog"
	"github.com/joseph-ayodele/medilink/internal/common"
)

type fakeAnalyzer struct {
	gotUpload  analysis.Upload
	outcome    *analysis.Outcome
	analyzeErr error

	gotSession, gotMessage string
	reply                  string
	chatErr                error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, up analysis.Upload) (*analysis.Outcome, error) {
	f.gotUpload = up
	if common.RequestIDFromContext(ctx) == "" {
		return nil, errors.New("request id missing from context")
	}
	return f.outcome, f.analyzeErr
}

func (f *fakeAnalyzer) Chat(_ context.Context, sessionID, message string) (string, error) {
	f.gotSession, f.gotMessage = sessionID, message
	return f.reply, f.chatErr
}

func newTestServer(t *testing.T, a Analyzer, drugs catalog.Store) http.Handler {
	t.Helper()
	return New(Config{GinMode: gin.TestMode, MaxUploadBytes: 1 << 20}, a, drugs, nil).Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func uploadRequest(t *testing.T, filename, docType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if docType != "" {
		require.NoError(t, mw.WriteField("document_type", docType))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/extract_text/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, nil)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OCR and AI API is running", body["message"])
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec, body = do(t, h, req)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body["detail"])
}

func TestExtractText(t *testing.T) {
	a := &fakeAnalyzer{outcome: &analysis.Outcome{
		SessionID:  "sess-1",
		DocType:    constants.DocPrescription,
		Text:       "Rx Amoxicillin 500mg",
		Analysis:   `{"medications":[]}`,
		Structured: json.RawMessage(`{"medications":[]}`),
	}}
	h := newTestServer(t, a, nil)

	rec, body := do(t, h, uploadRequest(t, "rx.png", "rx", []byte("png-bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sess-1", body["session_id"])
	assert.Equal(t, "prescription", body["document_type"])
	assert.Equal(t, "Rx Amoxicillin 500mg", body["extracted_text"])
	assert.Equal(t, `{"medications":[]}`, body["initial_analysis"])
	assert.Equal(t, map[string]any{"medications": []any{}}, body["structured_data"])

	assert.Equal(t, "rx.png", a.gotUpload.Filename)
	assert.Equal(t, []byte("png-bytes"), a.gotUpload.Bytes)
	assert.Equal(t, constants.DocPrescription, a.gotUpload.Hint)
}

func TestExtractTextDefaultsAndOmissions(t *testing.T) {
	a := &fakeAnalyzer{outcome: &analysis.Outcome{SessionID: "s", DocType: constants.DocUnknown, Text: "t", Analysis: "a"}}
	h := newTestServer(t, a, nil)

	rec, body := do(t, h, uploadRequest(t, "doc.pdf", "", []byte("%PDF")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, constants.DocLabReport, a.gotUpload.Hint)
	_, present := body["structured_data"]
	assert.False(t, present)
}

func TestExtractTextErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "missing file",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "", "auto", nil) },
			wantStatus: http.StatusBadRequest,
			wantDetail: "A file upload is required",
		},
		{
			name:       "invalid document type",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "a.png", "invoice", []byte("x")) },
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid document_type. Use one of: prescription, lab_report, auto",
		},
		{
			name: "unsupported format",
			req:  func(t *testing.T) *http.Request { return uploadRequest(t, "a.txt", "", []byte("x")) },
			err: common.NewAppError("UNSUPPORTED_FORMAT",
				"Unsupported file format. Please upload an image, PDF, or DOCX file.", common.ErrUnsupportedFormat),
			wantStatus: http.StatusBadRequest,
			wantDetail: "Unsupported file format. Please upload an image, PDF, or DOCX file.",
		},
		{
			name:       "insufficient text",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "a.png", "", []byte("x")) },
			err:        common.NewAppError("INSUFFICIENT_TEXT", "Could not extract sufficient text", common.ErrInsufficientText),
			wantStatus: http.StatusBadRequest,
			wantDetail: "Could not extract sufficient text",
		},
		{
			name:       "upstream failure",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "a.png", "", []byte("x")) },
			err:        common.NewAppError("UPSTREAM", "Error processing document: boom", common.ErrUpstream),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Error processing document: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeAnalyzer{analyzeErr: tt.err}, nil)
			rec, body := do(t, h, tt.req(t))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, body["detail"])
		})
	}
}

const testSessionID = "3f0b6d3e-8f57-4d1b-9a55-2c8e3f1b0a11"

func TestChat(t *testing.T) {
	a := &fakeAnalyzer{reply: "Take it twice daily."}
	h := newTestServer(t, a, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/"+testSessionID, strings.NewReader(`{"message":"How often?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Take it twice daily.", body["response"])
	assert.Equal(t, testSessionID, a.gotSession)
	assert.Equal(t, "How often?", a.gotMessage)
}

func TestChatMalformedSessionID(t *testing.T) {
	for _, id := range []string{"sess-9", "x", "3f0b6d3e-8f57-4d1b-9a55"} {
		t.Run(id, func(t *testing.T) {
			a := &fakeAnalyzer{reply: "unused"}
			h := newTestServer(t, a, nil)
			req := httptest.NewRequest(http.MethodPost, "/chat/"+id, strings.NewReader(`{"message":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			rec, body := do(t, h, req)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Session not found", body["detail"])
			assert.Empty(t, a.gotSession, "the analyzer is not consulted")
		})
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "Request body must be JSON with a message field"},
		{"unknown session", `{"message":"hi"}`, fmt.Errorf("session %q: %w", "x", common.ErrSessionNotFound), http.StatusNotFound, "Session not found"},
		{"empty message", `{"message":" "}`, common.NewAppError("EMPTY_MESSAGE", "Message cannot be empty", common.ErrEmptyMessage), http.StatusBadRequest, "Message cannot be empty"},
		{"upstream", `{"message":"hi"}`, common.NewAppError("UPSTREAM", "Error from AI service: 503", common.ErrUpstream), http.StatusInternalServerError, "Error from AI service: 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeAnalyzer{chatErr: tt.err}, nil)
			req := httptest.NewRequest(http.MethodPost, "/chat/"+testSessionID, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec, body := do(t, h, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, body["detail"])
		})
	}
}

func seedCatalog(t *testing.T, n int) *catalog.SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := catalog.OpenSQLite(ctx, filepath.Join(t.TempDir(), "drugs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	require.NoError(t, s.Migrate(ctx))
	for i := 0; i < n; i++ {
		require.NoError(t, s.Upsert(ctx, catalog.Drug{
			Link:       fmt.Sprintf("https://example.com/drugs/%02d", i),
			Title:      fmt.Sprintf("Paracetamol %02d", i),
			Price:      "₹10",
			Meta:       "Acme Pharma",
			Desc:       "Pain relief",
			Detail:     "strip of 10",
			SideEffect: "Nausea",
		}))
	}
	return s
}

func TestListDrugs(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, seedCatalog(t, 25))

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?search=PARACETAMOL", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 25, body["total"])
	assert.EqualValues(t, 20, body["limit"])
	assert.EqualValues(t, 0, body["page"])
	assert.EqualValues(t, 2, body["totalPages"])
	assert.Len(t, body["drugs"], 20)

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?limit=1000&page=-3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 100, body["limit"])
	assert.EqualValues(t, 0, body["page"])
	assert.Len(t, body["drugs"], 25)

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?limit=10&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	drugs := body["drugs"].([]any)
	require.Len(t, drugs, 5)
	first := drugs[0].(map[string]any)
	assert.Equal(t, "Paracetamol 20", first["title"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?search=ibuprofen", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["total"])
	assert.Empty(t, body["drugs"])
	assert.NotNil(t, body["drugs"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit must be an integer", body["detail"])
}

func TestGetDrugByID(t *testing.T) {
	s := seedCatalog(t, 1)
	page, err := s.Search(context.Background(), catalog.Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Drugs, 1)
	h := newTestServer(t, &fakeAnalyzer{}, s)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?id="+page.Drugs[0].ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	drug := body["drug"].(map[string]any)
	assert.Equal(t, page.Drugs[0].ID, drug["_id"])
	assert.Equal(t, "Paracetamol 00", drug["title"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/drugs?id=missing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	v, ok := body["drug"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestExportDrugs(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, seedCatalog(t, 3))

	rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/drugs/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxMIME, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "drugs.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Drugs")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestCatalogUnavailable(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, nil)
	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/drugs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Drug catalog unavailable", body["detail"])
}

func TestRecoveryRendersDetail(t *testing.T) {
	h := newTestServer(t, panicAnalyzer{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+testSessionID, strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := do(t, h, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["detail"])
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, analysis.Upload) (*analysis.Outcome, error) {
	panic("boom")
}

func (panicAnalyzer) Chat(context.Context, string, string) (string, error) {
	panic("boom")
}
