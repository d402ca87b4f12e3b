package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	uploaded []library.Document
	pages    []library.PageText
	deleted  []string
}

func (f *fakePublisher) Upload(_ context.Context, doc library.Document, pages library.PageText) (library.Document, error) {
	doc.ID = "doc-1"
	doc.Status = library.StatusActive
	f.uploaded = append(f.uploaded, doc)
	f.pages = append(f.pages, pages)
	return doc, nil
}

func (f *fakePublisher) Delete(_ context.Context, id string) error {
	if id != "doc-1" {
		return apperrors.ErrDocumentNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func uploadRequest(t *testing.T, role access.Role, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	access.ForRole("user-7", role).Apply(req.Header)
	return req
}

func TestUploadText(t *testing.T) {
	pub := &fakePublisher{}
	h := New(pub, 1<<20)
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, access.RoleScientist,
		map[string]string{"title": "Field Notes", "classification": "confidential"},
		"notes.txt", "alpha beta\fgamma"))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp ingestion.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, library.Confidential, resp.Classification)
	assert.Equal(t, 2, resp.TotalPages)

	require.Len(t, pub.uploaded, 1)
	assert.Equal(t, "user-7", pub.uploaded[0].UploadedBy)
	assert.Equal(t, library.PageText{1: "alpha beta", 2: "gamma"}, pub.pages[0])
}

func TestUploadPermissions(t *testing.T) {
	for _, role := range []access.Role{access.RoleStudent, access.RoleGuest} {
		rec := httptest.NewRecorder()
		New(&fakePublisher{}, 1<<20).Upload(rec, uploadRequest(t, role, map[string]string{"title": "x"}, "a.txt", "alpha"))
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  string
		status   int
	}{
		{"missing file", map[string]string{"title": "x"}, "", "", http.StatusBadRequest},
		{"wrong extension", map[string]string{"title": "x"}, "a.docx", "alpha", http.StatusBadRequest},
		{"bad classification", map[string]string{"title": "x", "classification": "secret"}, "a.txt", "alpha", http.StatusBadRequest},
		{"missing title", nil, "a.txt", "alpha", http.StatusBadRequest},
		{"no extractable text", map[string]string{"title": "x"}, "a.txt", " \f\x00 ", http.StatusUnprocessableEntity},
		{"unreadable pdf", map[string]string{"title": "x"}, "a.pdf", "not a pdf", http.StatusUnprocessableEntity},
		{"too large", map[string]string{"title": "x"}, "a.txt", strings.Repeat("a", 2048), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			rec := httptest.NewRecorder()
			New(pub, 1024).Upload(rec, uploadRequest(t, access.RoleLibrarian, tt.fields, tt.filename, tt.content))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Empty(t, pub.uploaded)
		})
	}
}

func TestDelete(t *testing.T) {
	pub := &fakePublisher{}
	h := New(pub, 1<<20)
	del := func(id string, role access.Role) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+id, nil)
		req.SetPathValue("id", id)
		access.ForRole("user-7", role).Apply(req.Header)
		rec := httptest.NewRecorder()
		h.Delete(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusForbidden, del("doc-1", access.RoleScientist))
	assert.Equal(t, http.StatusOK, del("doc-1", access.RoleLibrarian))
	assert.Equal(t, http.StatusNotFound, del("missing", access.RoleAdmin))
	assert.Equal(t, []string{"doc-1"}, pub.deleted)
}
