package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/lectern/internal/extract"
	"github.com/kalambet/lectern/internal/persona"
	"github.com/kalambet/lectern/internal/proxy"
	"github.com/kalambet/lectern/internal/search"
)

type fakeCompleter struct {
	reply string
	err   error
	got   []proxy.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req proxy.CompletionRequest) (string, error) {
	f.got = append(f.got, req)
	return f.reply, f.err
}

type fakeSearcher struct {
	context string
	results []search.Result
	calls   int
}

func (f *fakeSearcher) Aggregate(context.Context, string, persona.Persona, int) (string, []search.Result) {
	f.calls++
	return f.context, f.results
}

type fakeDocs struct {
	text string
	err  error
}

func (f fakeDocs) TextFromURL(context.Context, string) (string, error) { return f.text, f.err }

type fakeTranscripts struct {
	text string
	err  error
}

func (f fakeTranscripts) Transcript(context.Context, string) (string, error) { return f.text, f.err }

var turing = persona.Persona{Name: "Alan Turing", Field: "Computer Science", TeachingMode: persona.Socratic, AdviceType: "career advice"}

func TestChat_LocalKeepsRawAndFlagsThinking(t *testing.T) {
	c := &fakeCompleter{reply: "<think>plan</think>Answer"}
	p := New(c, nil, nil, nil)

	resp, err := p.Chat(context.Background(), ChatInput{Message: "What is a Turing machine?", Kind: proxy.Local, Persona: turing})
	require.NoError(t, err)

	assert.Equal(t, "<think>plan</think>Answer", resp.Response)
	require.NotNil(t, resp.HasThinking)
	assert.True(t, *resp.HasThinking)
	assert.Nil(t, resp.LectureComponents)

	require.Len(t, c.got, 1)
	req := c.got[0]
	assert.Equal(t, proxy.Local, req.Kind)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 4000, req.MaxTokens)
	assert.Contains(t, req.SystemMessage, "<think>")
	assert.Equal(t, "What is a Turing machine?", req.UserMessage)
}

func TestChat_HostedClassifies(t *testing.T) {
	c := &fakeCompleter{reply: "## Overview\nFor example, a tape."}
	p := New(c, nil, nil, nil)

	resp, err := p.Chat(context.Background(), ChatInput{Message: "q", Kind: proxy.Hosted, Tier: proxy.TierPremium, Persona: turing})
	require.NoError(t, err)

	require.NotNil(t, resp.LectureComponents)
	assert.True(t, resp.LectureComponents.HasSections)
	assert.True(t, resp.LectureComponents.HasExample)
	assert.Nil(t, resp.HasThinking)

	req := c.got[0]
	assert.Equal(t, 0.85, req.Temperature)
	assert.Equal(t, proxy.TierPremium, req.Tier)
	assert.NotContains(t, req.SystemMessage, "<think>")
}

func TestChat_Search(t *testing.T) {
	results := []search.Result{{Title: "Paper", URL: "https://arxiv.org/abs/1", IsAcademic: true}}
	s := &fakeSearcher{context: "Relevant academic and research sources:\n\n[Source 1] Paper\n", results: results}
	c := &fakeCompleter{reply: "ok"}
	p := New(c, s, nil, nil)

	resp, err := p.Chat(context.Background(), ChatInput{Message: "q", Kind: proxy.Hosted, Persona: turing, EnableSearch: true})
	require.NoError(t, err)
	assert.Equal(t, results, resp.SearchResults)
	assert.Contains(t, c.got[0].SystemMessage, "[Source 1] Paper")

	_, err = p.Chat(context.Background(), ChatInput{Message: "q", Kind: proxy.Hosted, Persona: turing})
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls, "search must only run when enabled")
}

func TestChat_SearchEmptyDegrades(t *testing.T) {
	c := &fakeCompleter{reply: "ok"}
	p := New(c, &fakeSearcher{}, nil, nil)

	resp, err := p.Chat(context.Background(), ChatInput{Message: "q", Kind: proxy.Hosted, Persona: turing, EnableSearch: true})
	require.NoError(t, err)
	assert.Empty(t, resp.SearchResults)
	assert.NotContains(t, c.got[0].SystemMessage, "reference materials")
}

func TestChat_UpstreamError(t *testing.T) {
	c := &fakeCompleter{err: proxy.ErrUpstreamUnavailable}
	_, err := New(c, nil, nil, nil).Chat(context.Background(), ChatInput{Message: "q", Kind: proxy.Local, Persona: turing})
	assert.ErrorIs(t, err, proxy.ErrUpstreamUnavailable)
}

func TestDocumentChat(t *testing.T) {
	c := &fakeCompleter{reply: "In this document, we can see $x$."}
	p := New(c, nil, fakeDocs{text: "page text\n\n"}, nil)

	history := []proxy.Message{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}}
	resp, err := p.DocumentChat(context.Background(), DocumentChatInput{
		DocumentID:       "d1",
		DocumentURL:      "https://example.com/a.pdf",
		DocumentTitle:    "Notes",
		Message:          "Explain",
		PreviousMessages: history,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.LectureComponents)
	assert.True(t, resp.LectureComponents.HasEquation)

	req := c.got[0]
	assert.Equal(t, proxy.Hosted, req.Kind)
	assert.Equal(t, proxy.TierDefault, req.Tier)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, history, req.History)
	assert.True(t, strings.HasPrefix(req.SystemMessage, "You are a professor leading a class discussion about the document titled 'Notes'."))
	assert.Contains(t, req.UserMessage, "page text")
}

func TestDocumentChat_Apology(t *testing.T) {
	for _, docs := range []fakeDocs{
		{err: extract.ErrExtraction},
		{text: "  \n\n"},
	} {
		c := &fakeCompleter{reply: "unused"}
		resp, err := New(c, nil, docs, nil).DocumentChat(context.Background(), DocumentChatInput{DocumentURL: "u", Message: "q"})
		require.NoError(t, err)
		assert.Equal(t, documentApology, resp.Response)
		assert.Nil(t, resp.LectureComponents)
		assert.Empty(t, c.got)
	}
}

func TestVideoChat(t *testing.T) {
	c := &fakeCompleter{reply: "At around [01:02], the presenter explains."}
	p := New(c, nil, nil, fakeTranscripts{text: "[01:02] graphs\n"})

	resp, err := p.VideoChat(context.Background(), VideoChatInput{YouTubeURL: "https://youtu.be/x", Message: "q"})
	require.NoError(t, err)
	assert.NotNil(t, resp.LectureComponents)

	req := c.got[0]
	assert.Contains(t, req.SystemMessage, "YouTube video titled 'Educational Video'")
	assert.Contains(t, req.UserMessage, "[01:02] graphs")
	assert.Equal(t, 1000, req.MaxTokens)
}

func TestVideoChat_Apology(t *testing.T) {
	c := &fakeCompleter{}
	resp, err := New(c, nil, nil, fakeTranscripts{err: errors.New("no captions")}).
		VideoChat(context.Background(), VideoChatInput{YouTubeURL: "u", Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, videoApology, resp.Response)
	assert.Empty(t, c.got)
}

func TestDiscuss_CompletionError(t *testing.T) {
	c := &fakeCompleter{err: &proxy.UpstreamError{Backend: "hosted", Status: 500}}
	_, err := New(c, nil, fakeDocs{text: "t"}, nil).DocumentChat(context.Background(), DocumentChatInput{Message: "q"})
	var ue *proxy.UpstreamError
	assert.ErrorAs(t, err, &ue)
}
