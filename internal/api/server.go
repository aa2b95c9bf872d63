package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kalambet/lectern/internal/ingest"
	"github.com/kalambet/lectern/internal/pipeline"
	"github.com/kalambet/lectern/internal/scheduling"
	"github.com/kalambet/lectern/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ChatService is satisfied by *pipeline.Pipeline.
type ChatService interface {
	Chat(ctx context.Context, in pipeline.ChatInput) (pipeline.ChatResponse, error)
	DocumentChat(ctx context.Context, in pipeline.DocumentChatInput) (pipeline.ChatResponse, error)
	VideoChat(ctx context.Context, in pipeline.VideoChatInput) (pipeline.ChatResponse, error)
}

// DocumentStore is the document catalogue behind the upload routes.
type DocumentStore interface {
	SaveDocument(ctx context.Context, d storage.Document) error
	GetDocument(ctx context.Context, id string) (storage.Document, error)
	ListDocuments(ctx context.Context) ([]storage.Document, error)
}

type Deps struct {
	Chat       ChatService
	Search     pipeline.Searcher // optional; /api/search answers 503 without it
	Scheduling *scheduling.Service
	Documents  DocumentStore
	// Jobs receives index jobs for uploaded PDFs. Nil disables indexing.
	Jobs        ingest.JobQueue
	UploadDir   string
	CORSOrigins []string
}

// NewHandler returns the lectern REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.CORSOrigins))

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", handleChat(deps))
		r.Post("/document-chat", handleDocumentChat(deps))
		r.Post("/youtube-chat", handleVideoChat(deps))
		r.Get("/search", handleSearch(deps))

		r.Post("/upload", handleUpload(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Get("/documents/{id}", handleGetDocument(deps))

		r.Post("/professor/availability", handleAddAvailability(deps))
		r.Get("/professor/availability", handleListAvailability(deps))
		r.Delete("/professor/availability/{id}", handleDeleteAvailability(deps))
		r.Get("/professor/bookings", handleProfessorBookings(deps))

		r.Post("/student/book-meeting", handleBookMeeting(deps))
		r.Get("/student/bookings", handleStudentBookings(deps))

		r.Delete("/booking/{id}", handleCancelBooking(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Named("api").Warn("writing response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
