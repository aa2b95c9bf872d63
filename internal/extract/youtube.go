package extract

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultYouTubeBase = "https://www.youtube.com"
	captionMarker      = `"captionTracks":`
	maxWatchPageBytes  = 4 << 20
	userAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"
)

// VideoID returns the id of a youtu.be short link or the v parameter of a
// youtube.com watch URL.
func VideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: parsing video url: %w", ErrExtraction, err)
	}
	if strings.EqualFold(u.Host, "youtu.be") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	} else if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: could not extract video id from %q", ErrExtraction, raw)
}

type TranscriptEntry struct {
	Start    float64
	Duration float64
	Text     string
}

// FormatTranscript renders one "[MM:SS] text" line per entry.
func FormatTranscript(entries []TranscriptEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		minutes := int(e.Start / 60)
		seconds := int(math.Mod(e.Start, 60))
		fmt.Fprintf(&sb, "[%02d:%02d] %s\n", minutes, seconds, e.Text)
	}
	return sb.String()
}

// YouTube fetches caption tracks from the public watch page.
type YouTube struct {
	client  *http.Client
	baseURL string
	lang    string
	logger  *zap.Logger
}

func NewYouTube(timeout time.Duration) *YouTube {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewYouTubeWithBaseURL(defaultYouTubeBase, &http.Client{Timeout: timeout})
}

func NewYouTubeWithBaseURL(baseURL string, client *http.Client) *YouTube {
	return &YouTube{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		lang:    "en",
		logger:  zap.L().Named("extract"),
	}
}

// Transcript returns the timestamped caption text of the video at videoURL.
func (y *YouTube) Transcript(ctx context.Context, videoURL string) (string, error) {
	entries, err := y.Entries(ctx, videoURL)
	if err != nil {
		return "", err
	}
	return FormatTranscript(entries), nil
}

func (y *YouTube) Entries(ctx context.Context, videoURL string) ([]TranscriptEntry, error) {
	id, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}

	page, err := y.get(ctx, y.baseURL+"/watch?v="+url.QueryEscape(id), maxWatchPageBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching watch page: %w", ErrExtraction, err)
	}
	track, err := y.pickTrack(page)
	if err != nil {
		return nil, err
	}

	body, err := y.get(ctx, track.BaseURL, maxWatchPageBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching captions: %w", ErrExtraction, err)
	}
	entries, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: caption track for %s is empty", ErrExtraction, id)
	}
	y.logger.Debug("transcript fetched",
		zap.String("video_id", id),
		zap.String("language", track.LanguageCode),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// pickTrack prefers a manual track in the configured language, then an
// auto-generated one, then whatever comes first.
func (y *YouTube) pickTrack(page []byte) (captionTrack, error) {
	idx := strings.Index(string(page), captionMarker)
	if idx < 0 {
		return captionTrack{}, fmt.Errorf("%w: video has no captions available", ErrExtraction)
	}
	var tracks []captionTrack
	dec := json.NewDecoder(strings.NewReader(string(page[idx+len(captionMarker):])))
	if err := dec.Decode(&tracks); err != nil {
		return captionTrack{}, fmt.Errorf("%w: decoding caption tracks: %w", ErrExtraction, err)
	}
	if len(tracks) == 0 {
		return captionTrack{}, fmt.Errorf("%w: video has no captions available", ErrExtraction)
	}

	best := -1
	for i, t := range tracks {
		if !strings.HasPrefix(t.LanguageCode, y.lang) {
			continue
		}
		if t.Kind != "asr" {
			best = i
			break
		}
		if best < 0 {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}
	return tracks[best], nil
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(body []byte) ([]TranscriptEntry, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("%w: decoding captions: %w", ErrExtraction, err)
	}
	entries := make([]TranscriptEntry, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		// Caption bodies arrive entity-escaped a second time.
		text := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if text == "" {
			continue
		}
		entries = append(entries, TranscriptEntry{Start: start, Duration: dur, Text: text})
	}
	return entries, nil
}

func (y *YouTube) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", y.lang)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
