package api

import (
	"net/http"
	"strconv"

	"github.com/kalambet/lectern/internal/persona"
	"github.com/kalambet/lectern/internal/pipeline"
	"github.com/kalambet/lectern/internal/proxy"
	"github.com/kalambet/lectern/internal/search"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 20
)

type chatRequest struct {
	Message      string          `json:"message" validate:"required"`
	ModelType    string          `json:"model_type" validate:"required"`
	Professor    persona.Persona `json:"professor"`
	EnableSearch bool            `json:"enable_search"`
}

type documentChatRequest struct {
	DocumentID       string          `json:"document_id" validate:"required"`
	DocumentURL      string          `json:"document_url" validate:"required"`
	DocumentTitle    string          `json:"document_title" validate:"required"`
	Message          string          `json:"message" validate:"required"`
	PreviousMessages []proxy.Message `json:"previous_messages" validate:"dive"`
}

type videoChatRequest struct {
	YouTubeURL       string          `json:"youtube_url" validate:"required"`
	VideoTitle       string          `json:"video_title"`
	Message          string          `json:"message" validate:"required"`
	PreviousMessages []proxy.Message `json:"previous_messages" validate:"dive"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		kind, tier, err := proxy.ParseModelType(req.ModelType)
		if err != nil {
			writeError(w, invalid("%v", err))
			return
		}

		resp, err := deps.Chat.Chat(r.Context(), pipeline.ChatInput{
			Message:      req.Message,
			Kind:         kind,
			Tier:         tier,
			Persona:      req.Professor,
			EnableSearch: req.EnableSearch,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleDocumentChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req documentChatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		resp, err := deps.Chat.DocumentChat(r.Context(), pipeline.DocumentChatInput{
			DocumentID:       req.DocumentID,
			DocumentURL:      req.DocumentURL,
			DocumentTitle:    req.DocumentTitle,
			Message:          req.Message,
			PreviousMessages: req.PreviousMessages,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleVideoChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req videoChatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		resp, err := deps.Chat.VideoChat(r.Context(), pipeline.VideoChatInput{
			YouTubeURL:       req.YouTubeURL,
			VideoTitle:       req.VideoTitle,
			Message:          req.Message,
			PreviousMessages: req.PreviousMessages,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleSearch exposes the raw aggregator output for debugging the ranking.
func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Search == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "search is not configured")
			return
		}

		q := r.URL.Query()
		query := q.Get("q")
		if query == "" {
			writeError(w, invalid("q is required"))
			return
		}

		n := defaultSearchResults
		if raw := q.Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				writeError(w, invalid("n must be a positive integer"))
				return
			}
			n = min(v, maxSearchResults)
		}

		p := persona.Persona{Name: q.Get("name"), Field: q.Get("field")}
		rendered, results := deps.Search.Aggregate(r.Context(), query, p, n)
		if results == nil {
			results = []search.Result{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"query":   query,
			"context": rendered,
			"results": results,
		})
	}
}
