package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func uploadFile(t *testing.T, e *testEnv, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", "user_1")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestImportBriefRejects(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name      string
		filename  string
		data      []byte
		wantError string
	}{
		{name: "no file", wantError: "invalid_request"},
		{name: "wrong extension", filename: "brief.docx", data: []byte("PK"), wantError: "invalid_file_type"},
		{name: "not a pdf", filename: "brief.pdf", data: []byte("hello"), wantError: "invalid_pdf"},
		{name: "corrupt pdf", filename: "brief.pdf", data: []byte("%PDF-1.4\ngarbage"), wantError: "invalid_pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := uploadFile(t, env, "/briefs", tt.filename, tt.data)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			if got := decode[struct {
				Error string `json:"error"`
			}](t, w).Error; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}
