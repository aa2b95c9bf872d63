// Package pipeline runs a classroom chat turn: prompt composition, optional
// web search, completion and response postprocessing.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/lectern/internal/composer"
	"github.com/kalambet/lectern/internal/persona"
	"github.com/kalambet/lectern/internal/postprocess"
	"github.com/kalambet/lectern/internal/proxy"
	"github.com/kalambet/lectern/internal/search"
)

const (
	documentApology = "I couldn't extract text from this document. The PDF might be scanned, password-protected, or in an unsupported format."
	videoApology    = "I couldn't extract the transcript from this YouTube video. It might not have captions available or might be in an unsupported format."

	// DefaultVideoTitle is used when a video chat names no title.
	DefaultVideoTitle = "Educational Video"

	searchResultCount = 5
)

// Completer produces a completion for one request.
type Completer interface {
	Complete(ctx context.Context, req proxy.CompletionRequest) (string, error)
}

// Searcher gathers ranked web sources for a question.
type Searcher interface {
	Aggregate(ctx context.Context, query string, p persona.Persona, desired int) (string, []search.Result)
}

// DocumentReader fetches the text of a PDF by URL.
type DocumentReader interface {
	TextFromURL(ctx context.Context, url string) (string, error)
}

// Transcriber fetches a timestamped YouTube transcript.
type Transcriber interface {
	Transcript(ctx context.Context, videoURL string) (string, error)
}

type ChatInput struct {
	Message      string
	Kind         proxy.ModelKind
	Tier         proxy.Tier
	Persona      persona.Persona
	EnableSearch bool
}

type DocumentChatInput struct {
	DocumentID       string
	DocumentURL      string
	DocumentTitle    string
	Message          string
	PreviousMessages []proxy.Message
}

type VideoChatInput struct {
	YouTubeURL       string
	VideoTitle       string
	Message          string
	PreviousMessages []proxy.Message
}

// ChatResponse is the payload returned to the client. Local completions
// carry HasThinking; hosted ones carry LectureComponents.
type ChatResponse struct {
	Response          string                         `json:"response"`
	SearchResults     []search.Result                `json:"search_results,omitempty"`
	LectureComponents *postprocess.LectureComponents `json:"lecture_components,omitempty"`
	HasThinking       *bool                          `json:"has_thinking,omitempty"`
	// AutoSplit marks a thinking section guessed by bisecting the text
	// rather than found between think tags.
	AutoSplit bool `json:"auto_split,omitempty"`
}

type Pipeline struct {
	completer  Completer
	searcher   Searcher
	documents  DocumentReader
	transcript Transcriber
	logger     *zap.Logger
}

func New(c Completer, s Searcher, d DocumentReader, t Transcriber) *Pipeline {
	return &Pipeline{
		completer:  c,
		searcher:   s,
		documents:  d,
		transcript: t,
		logger:     zap.L().Named("pipeline"),
	}
}

// Chat answers a student's message in the persona's voice. A search that
// yields nothing leaves the prompt without a source block.
func (p *Pipeline) Chat(ctx context.Context, in ChatInput) (ChatResponse, error) {
	start := time.Now()

	var (
		searchContext string
		results       []search.Result
	)
	if in.EnableSearch && p.searcher != nil {
		searchContext, results = p.searcher.Aggregate(ctx, in.Message, in.Persona, searchResultCount)
		p.logger.Debug("search finished", zap.Int("results", len(results)))
	}

	req := proxy.CompletionRequest{
		SystemMessage: composer.Compose(in.Persona, in.Kind, searchContext),
		UserMessage:   in.Message,
		Kind:          in.Kind,
		Tier:          in.Tier,
	}
	if in.Kind == proxy.Local {
		req.Temperature = 0.7
		req.MaxTokens = 4000
	} else {
		req.Temperature = 0.85
	}

	raw, err := p.completer.Complete(ctx, req)
	if err != nil {
		return ChatResponse{}, err
	}

	resp := ChatResponse{SearchResults: results}
	if in.Kind == proxy.Local {
		th := postprocess.Process(raw)
		resp.Response = raw
		resp.HasThinking = &th.HasThinking
		resp.AutoSplit = th.AutoSplit
	} else {
		lc := postprocess.Classify(raw)
		resp.Response = raw
		resp.LectureComponents = &lc
	}

	p.logger.Info("chat answered",
		zap.String("kind", string(in.Kind)),
		zap.String("professor", in.Persona.Name),
		zap.Bool("search", in.EnableSearch),
		zap.Int("sources", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// DocumentChat discusses a PDF. When no text can be extracted the reply is
// a fixed apology rather than an error.
func (p *Pipeline) DocumentChat(ctx context.Context, in DocumentChatInput) (ChatResponse, error) {
	text, err := p.documents.TextFromURL(ctx, in.DocumentURL)
	if err != nil || strings.TrimSpace(text) == "" {
		p.logger.Warn("document text unavailable", zap.String("document_id", in.DocumentID), zap.Error(err))
		return ChatResponse{Response: documentApology}, nil
	}

	return p.discuss(ctx, proxy.CompletionRequest{
		SystemMessage: composer.DocumentPrompt(in.DocumentTitle),
		UserMessage:   composer.DocumentUserMessage(in.DocumentTitle, text, in.Message),
		History:       in.PreviousMessages,
	})
}

// VideoChat discusses a YouTube video through its transcript.
func (p *Pipeline) VideoChat(ctx context.Context, in VideoChatInput) (ChatResponse, error) {
	title := in.VideoTitle
	if title == "" {
		title = DefaultVideoTitle
	}

	transcript, err := p.transcript.Transcript(ctx, in.YouTubeURL)
	if err != nil || strings.TrimSpace(transcript) == "" {
		p.logger.Warn("transcript unavailable", zap.String("url", in.YouTubeURL), zap.Error(err))
		return ChatResponse{Response: videoApology}, nil
	}

	return p.discuss(ctx, proxy.CompletionRequest{
		SystemMessage: composer.VideoPrompt(title),
		UserMessage:   composer.VideoUserMessage(title, in.YouTubeURL, transcript, in.Message),
		History:       in.PreviousMessages,
	})
}

func (p *Pipeline) discuss(ctx context.Context, req proxy.CompletionRequest) (ChatResponse, error) {
	req.Kind = proxy.Hosted
	req.Tier = proxy.TierDefault
	req.Temperature = 0.7
	req.MaxTokens = 1000

	raw, err := p.completer.Complete(ctx, req)
	if err != nil {
		return ChatResponse{}, err
	}
	lc := postprocess.Classify(raw)
	return ChatResponse{Response: raw, LectureComponents: &lc}, nil
}
