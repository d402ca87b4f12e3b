package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/logger"
)

// formOverhead is the allowance for multipart boundaries and text fields on
// top of the file size limit.
const formOverhead = 1 << 20

// DocumentPublisher is satisfied by *publisher.Publisher.
type DocumentPublisher interface {
	Upload(ctx context.Context, doc library.Document, pages library.PageText) (library.Document, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	publisher DocumentPublisher
	maxBytes  int64
	logger    *slog.Logger
}

func New(pub DocumentPublisher, maxUploadBytes int64) *Handler {
	return &Handler{
		publisher: pub,
		maxBytes:  maxUploadBytes,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Upload handles a multipart POST with title, author, subject,
// classification and file fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	caller := access.FromRequest(r)
	if !caller.Role.CanUpload() {
		h.writeError(w, http.StatusForbidden, apperrors.Reason(apperrors.ErrForbidden))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload := validator.Upload{
		Title:          strings.TrimSpace(r.FormValue("title")),
		Author:         strings.TrimSpace(r.FormValue("author")),
		Subject:        strings.TrimSpace(r.FormValue("subject")),
		Classification: r.FormValue("classification"),
	}
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		upload.Filename = filepath.Base(header.Filename)
		upload.Size = header.Size
	}
	classification, err := validator.ValidateUpload(upload, h.maxBytes)
	if err != nil {
		h.writeValidation(w, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	ext, err := extractor.ForFilename(upload.Filename)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "only .pdf and .txt files are accepted")
		return
	}
	extracted, err := ext.Extract(data)
	if err != nil {
		log.Warn("extraction failed", "filename", upload.Filename, "error", err)
		h.writeError(w, http.StatusUnprocessableEntity, "file could not be read")
		return
	}
	if upload.Title == "" {
		upload.Title = extracted.Title
	}
	if upload.Author == "" {
		upload.Author = extracted.Author
	}
	if upload.Subject == "" {
		upload.Subject = extracted.Subject
	}
	if err := validator.ValidateTitle(upload.Title); err != nil {
		h.writeValidation(w, err)
		return
	}
	if !extracted.Pages.HasText() {
		log.Warn("upload rejected: no extractable text", "filename", upload.Filename, "pages", extracted.TotalPages)
		h.writeFailure(w, apperrors.ErrNoExtractableText)
		return
	}

	doc, err := h.publisher.Upload(ctx, library.Document{
		Title:          upload.Title,
		Author:         upload.Author,
		Subject:        upload.Subject,
		Classification: classification,
		TotalPages:     extracted.TotalPages,
		UploadedBy:     caller.ID,
	}, extracted.Pages)
	if err != nil {
		log.Error("upload failed", "filename", upload.Filename, "error", err)
		h.writeFailure(w, err)
		return
	}
	log.Info("document uploaded",
		"document_id", doc.ID,
		"classification", doc.Classification,
		"total_pages", extracted.TotalPages,
		"pages_with_text", len(extracted.Pages),
		"uploaded_by", caller.ID,
	)
	h.writeJSON(w, http.StatusAccepted, ingestion.UploadResponse{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		Classification: doc.Classification,
		TotalPages:     extracted.TotalPages,
		PagesWithText:  len(extracted.Pages),
		Status:         "accepted",
	})
}

// Delete soft deletes the document named by the {id} path segment.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := access.FromRequest(r)
	if !caller.Role.CanManage() {
		h.writeError(w, http.StatusForbidden, apperrors.Reason(apperrors.ErrForbidden))
		return
	}
	id := r.PathValue("id")
	if err := h.publisher.Delete(r.Context(), id); err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			logger.FromContext(r.Context()).Error("delete failed", "document_id", id, "error", err)
		}
		h.writeFailure(w, err)
		return
	}
	logger.FromContext(r.Context()).Info("document deleted", "document_id", id, "deleted_by", caller.ID)
	h.writeJSON(w, http.StatusOK, ingestion.DeleteResponse{DocumentID: id, Status: string(library.StatusDeleted)})
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, "invalid input")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Reason(err))
}
