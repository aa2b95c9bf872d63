package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/lectern/internal/extract"
	"github.com/kalambet/lectern/internal/ingest"
	"github.com/kalambet/lectern/internal/storage"
)

const (
	maxUploadSize   = 50 << 20 // 50MB
	multipartMemory = 8 << 20

	untitledDocument   = "Untitled Document"
	defaultDescription = "No description provided"
	videoDescription   = "YouTube video resource"
	videoFilename      = "youtube_video"
)

type uploadResponse struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	FilePath    string `json:"file_path"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

type uploadForm struct {
	Title       string
	Description string
	YouTubeURL  string
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		err := r.ParseMultipartForm(multipartMemory)
		if err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeError(w, invalid("invalid upload form: %v", err))
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		form := uploadForm{
			Title:       strings.TrimSpace(r.FormValue("title")),
			Description: strings.TrimSpace(r.FormValue("description")),
			YouTubeURL:  strings.TrimSpace(r.FormValue("youtube_url")),
		}

		var resp uploadResponse
		file, header, err := r.FormFile("file")
		switch {
		case err == nil && header.Filename != "":
			defer file.Close()
			resp, err = saveFileUpload(r.Context(), deps, file, header.Filename, form)
		case err == nil || errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart):
			if file != nil {
				file.Close()
			}
			if form.YouTubeURL == "" {
				writeError(w, invalid("No file or YouTube URL provided"))
				return
			}
			resp, err = saveVideoUpload(r.Context(), deps, form)
		default:
			writeError(w, invalid("invalid file part: %v", err))
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func saveFileUpload(ctx context.Context, deps Deps, src multipart.File, filename string, form uploadForm) (uploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extract.Allowed(ext) {
		return uploadResponse{}, invalid("Unsupported file type. Allowed types: %s", strings.Join(extract.AllowedExtensions, ", "))
	}

	id := uuid.NewString()
	if err := os.MkdirAll(deps.UploadDir, 0o755); err != nil {
		return uploadResponse{}, fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(deps.UploadDir, id+ext)
	if err := writeUpload(path, src); err != nil {
		return uploadResponse{}, err
	}

	preview := extract.Preview(path, ext)

	title := form.Title
	if title == "" {
		title = preview.Title
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if title == "" {
		title = untitledDocument
	}
	description := form.Description
	if description == "" {
		description = defaultDescription
	}

	doc := storage.Document{
		ID:             id,
		Filename:       filename,
		FilePath:       path,
		Title:          title,
		Description:    description,
		ContentPreview: preview.Text,
		Type:           storage.DocumentFile,
		UploadedAt:     time.Now().UTC(),
	}
	if err := deps.Documents.SaveDocument(ctx, doc); err != nil {
		os.Remove(path)
		return uploadResponse{}, fmt.Errorf("saving document: %w", err)
	}

	if ext == ".pdf" && deps.Jobs != nil {
		if err := ingest.EnqueueDocument(ctx, deps.Jobs, id); err != nil {
			zap.L().Named("api").Warn("failed to queue document for indexing",
				zap.String("document_id", id), zap.Error(err))
		}
	}

	return uploadResponse{
		DocumentID:  id,
		Filename:    filename,
		FilePath:    path,
		Title:       title,
		Description: description,
		Message:     "File uploaded successfully",
	}, nil
}

func writeUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("writing upload file: %w", err)
	}
	return dst.Close()
}

func saveVideoUpload(ctx context.Context, deps Deps, form uploadForm) (uploadResponse, error) {
	title := form.Title
	if title == "" {
		// Everything after the last "?v=", or the whole URL when absent.
		parts := strings.Split(form.YouTubeURL, "?v=")
		title = "YouTube Resource: " + parts[len(parts)-1]
	}
	description := form.Description
	if description == "" {
		description = videoDescription
	}

	doc := storage.Document{
		ID:             uuid.NewString(),
		Filename:       videoFilename,
		FilePath:       form.YouTubeURL,
		Title:          title,
		Description:    description,
		ContentPreview: "YouTube video: " + form.YouTubeURL,
		Type:           storage.DocumentYouTube,
		UploadedAt:     time.Now().UTC(),
	}
	if err := deps.Documents.SaveDocument(ctx, doc); err != nil {
		return uploadResponse{}, fmt.Errorf("saving document: %w", err)
	}

	return uploadResponse{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		FilePath:    doc.FilePath,
		Title:       title,
		Description: description,
		Message:     "YouTube URL processed successfully",
	}, nil
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Documents.ListDocuments(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Documents.GetDocument(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "Document not found")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}
