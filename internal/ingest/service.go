package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Content is the normalized record every source is reduced to.
type Content struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	URL       string `json:"url"`
	Author    string `json:"author,omitempty"`
	Published string `json:"published,omitempty"`
	WordCount int    `json:"word_count"`
}

// Service fetches and normalizes content from URLs, RSS feeds and YouTube
// transcripts. Fetch and parse errors propagate unchanged.
type Service struct {
	client *http.Client
	feeds  *gofeed.Parser
	logger *zap.Logger

	// timedTextBase and watchBase override the YouTube endpoints in tests.
	timedTextBase string
	watchBase     string
}

func NewService(timeout time.Duration, logger *zap.Logger) *Service {
	client := &http.Client{Timeout: timeout}
	feeds := gofeed.NewParser()
	feeds.Client = client
	return &Service{
		client: client,
		feeds:  feeds,
		logger: logger,
	}
}

// IngestURL fetches a page and extracts its title and main text.
func (s *Service) IngestURL(ctx context.Context, url string) (*Content, error) {
	s.logger.Info("Ingesting URL", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, nav, footer, header").Remove()

	main := doc.Find("article").First()
	if main.Length() == 0 {
		main = doc.Find("main").First()
	}
	if main.Length() == 0 {
		main = doc.Find("body").First()
	}

	lines := make([]string, 0)
	for _, line := range strings.Split(main.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	content := strings.Join(lines, "\n")

	s.logger.Info("URL ingested",
		zap.String("url", url),
		zap.Int("content_length", len(content)))

	return &Content{
		Title:     title,
		Content:   content,
		URL:       url,
		WordCount: len(strings.Fields(content)),
	}, nil
}

// IngestRSS parses a feed and returns up to maxEntries normalized entries.
func (s *Service) IngestRSS(ctx context.Context, feedURL string, maxEntries int) ([]*Content, error) {
	s.logger.Info("Ingesting RSS feed", zap.String("feed_url", feedURL))

	feed, err := s.feeds.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS %s: %w", feedURL, err)
	}

	items := feed.Items
	if maxEntries > 0 && len(items) > maxEntries {
		items = items[:maxEntries]
	}

	entries := make([]*Content, 0, len(items))
	for _, entry := range items {
		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		author := ""
		if len(entry.Authors) > 0 {
			author = entry.Authors[0].Name
		}

		entries = append(entries, &Content{
			Title:     entry.Title,
			Content:   body,
			URL:       entry.Link,
			Author:    author,
			Published: entry.Published,
			WordCount: len(strings.Fields(body)),
		})
	}

	s.logger.Info("RSS feed ingested",
		zap.String("feed_url", feedURL),
		zap.Int("entries_count", len(entries)))

	return entries, nil
}

// transcript is the timedtext wire format.
type transcript struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

const timedTextURL = "https://video.google.com/timedtext?lang=en&v=%s"

// IngestYouTube fetches a video's English transcript and title.
func (s *Service) IngestYouTube(ctx context.Context, videoID string) (*Content, error) {
	s.logger.Info("Ingesting YouTube video", zap.String("video_id", videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.transcriptURL(), videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcript request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript for %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript for %s: %w", videoID, err)
	}
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		return nil, fmt.Errorf("no transcript available for %s", videoID)
	}

	var tr transcript
	if err := xml.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse transcript for %s: %w", videoID, err)
	}

	parts := make([]string, 0, len(tr.Texts))
	for _, t := range tr.Texts {
		if clean := strings.TrimSpace(html.UnescapeString(t.Value)); clean != "" {
			parts = append(parts, clean)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return nil, fmt.Errorf("empty transcript for %s", videoID)
	}

	videoURL := "https://youtube.com/watch?v=" + videoID
	watchURL := videoURL
	if s.watchBase != "" {
		watchURL = s.watchBase + videoID
	}
	title := s.youtubeTitle(ctx, watchURL)
	if title == "" {
		title = "YouTube: " + videoID
	}

	s.logger.Info("YouTube video ingested",
		zap.String("video_id", videoID),
		zap.Int("transcript_length", len(text)))

	return &Content{
		Title:     title,
		Content:   text,
		URL:       videoURL,
		WordCount: len(strings.Fields(text)),
	}, nil
}

func (s *Service) transcriptURL() string {
	if s.timedTextBase != "" {
		return s.timedTextBase
	}
	return timedTextURL
}

// youtubeTitle scrapes the watch page title. Best effort only.
func (s *Service) youtubeTitle(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
}
