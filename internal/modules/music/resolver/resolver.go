// Package resolver turns free-text queries into playable track descriptors
// using the YouTube Data API. Direct URLs bypass the search entirely.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/nozuki/melobot/internal/modules/music/domain"
)

// searchTimeout bounds a single search call.
const searchTimeout = 10 * time.Second

var urlPattern = regexp.MustCompile(`^https?://`)

// searchFunc performs one search call and returns the top hit.
// It exists so tests can run without the YouTube API.
type searchFunc func(ctx context.Context, query string) (*domain.Track, error)

// Resolver resolves queries to tracks. The zero value is not usable; use New.
type Resolver struct {
	search searchFunc
}

// New creates a Resolver backed by the YouTube Data API.
func New(ctx context.Context, apiKey string) (*Resolver, error) {
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &Resolver{search: youtubeSearch(svc)}, nil
}

// Resolve turns a query into a track. URLs pass through as literal tracks;
// anything else goes through one bounded search call. Returns nil on empty
// input, timeout, no results, or search error; it never returns an error.
func (r *Resolver) Resolve(ctx context.Context, query string) *domain.Track {
	query = Sanitize(query)
	if query == "" {
		return nil
	}

	if urlPattern.MatchString(query) {
		return &domain.Track{Title: query, URL: query}
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	track, err := r.search(ctx, query)
	if err != nil {
		slog.Warn("track search failed", "query", query, "error", err)
		return nil
	}
	return track
}

// Sanitize strips control characters and the <> markers Discord uses for
// link suppression, so the query is safe to echo back in replies.
func Sanitize(query string) string {
	query = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '<' || r == '>' {
			return -1
		}
		return r
	}, query)
	return strings.TrimSpace(query)
}

// youtubeSearch requests the single top relevance-ranked music-category video
// for the query, mirroring the bot's search shape on the Data API.
func youtubeSearch(svc *youtube.Service) searchFunc {
	return func(ctx context.Context, query string) (*domain.Track, error) {
		resp, err := svc.Search.List([]string{"id", "snippet"}).
			Q(query).
			Type("video").
			MaxResults(1).
			VideoCategoryId("10").
			Order("relevance").
			SafeSearch("none").
			Context(ctx).
			Do()
		if err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			return nil, nil
		}

		item := resp.Items[0]
		return &domain.Track{
			ID:       item.Id.VideoId,
			Title:    item.Snippet.Title,
			Uploader: item.Snippet.ChannelTitle,
			URL:      "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		}, nil
	}
}
