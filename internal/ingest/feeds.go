// Package ingest polls registered RSS/Atom feeds and lands new entries as
// captures, ready for grouping and analysis.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/platform/observability"
	"github.com/truthlab/content-radar/internal/platform/worker"
	"github.com/truthlab/content-radar/internal/storage"
)

const defaultPollInterval = 10 * time.Minute

// Store is the storage surface the poller needs.
type Store interface {
	ListFeeds(ctx context.Context) ([]storage.Feed, error)
	TouchFeedFetched(ctx context.Context, id string) error
	CaptureExistsByURL(ctx context.Context, url string) (bool, error)
	InsertCapture(ctx context.Context, c storage.Capture) (string, error)
}

// Poller walks every registered feed on a fixed interval.
type Poller struct {
	store        Store
	parser       *gofeed.Parser
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *zerolog.Logger
}

func NewPoller(store Store, interval, fetchTimeout time.Duration, logger *zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	parser := gofeed.NewParser()
	parser.UserAgent = "ContentRadar/1.0 (Feed Ingest)"

	return &Poller{
		store:        store,
		parser:       parser,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Run polls until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "feed-ingest",
		PollInterval: p.interval,
		Process:      p.pollAll,
		Logger:       p.logger,
	})
}

// pollAll visits every feed; one broken feed never blocks the rest.
func (p *Poller) pollAll(ctx context.Context) error {
	feeds, err := p.store.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	for _, feed := range feeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := p.pollFeed(ctx, feed); err != nil {
			p.logger.Warn().Err(err).Str("feed_url", feed.URL).Msg("feed poll failed")
		}
	}

	return nil
}

func (p *Poller) pollFeed(ctx context.Context, feed storage.Feed) error {
	fetchCtx := ctx

	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc

		fetchCtx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	parsed, err := p.parser.ParseURLWithContext(feed.URL, fetchCtx)
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}

	ingested := 0

	for _, item := range parsed.Items {
		ok, err := p.ingestItem(ctx, feed, item)
		if err != nil {
			p.logger.Warn().Err(err).Str("feed_url", feed.URL).Str("item", item.Link).Msg("feed item skipped")

			continue
		}

		if ok {
			ingested++
		}
	}

	if ingested > 0 {
		observability.FeedEntriesIngested.WithLabelValues(feed.URL).Add(float64(ingested))
		p.logger.Info().Str("feed_url", feed.URL).Int("ingested", ingested).Msg("feed entries ingested")
	}

	if err := p.store.TouchFeedFetched(ctx, feed.ID); err != nil {
		return fmt.Errorf("touch feed: %w", err)
	}

	return nil
}

// ingestItem stores one feed entry as a capture unless its URL was seen
// before. Returns true when a capture was created.
func (p *Poller) ingestItem(ctx context.Context, feed storage.Feed, item *gofeed.Item) (bool, error) {
	if item.Link == "" {
		return false, nil
	}

	exists, err := p.store.CaptureExistsByURL(ctx, item.Link)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}

	if exists {
		return false, nil
	}

	_, err = p.store.InsertCapture(ctx, storage.Capture{
		ProjectID: feed.ProjectID,
		Title:     item.Title,
		URL:       item.Link,
		Text:      itemText(item),
		SourceTag: "feed",
	})
	if err != nil {
		return false, fmt.Errorf("insert capture: %w", err)
	}

	return true, nil
}

// itemText prefers full content over the summary and appends the published
// timestamp when one can be recovered from the entry.
func itemText(item *gofeed.Item) string {
	text := item.Content
	if strings.TrimSpace(text) == "" {
		text = item.Description
	}

	if ts := publishedAt(item); ts != nil {
		text = fmt.Sprintf("%s\n\nPublished: %s", text, ts.UTC().Format(time.RFC3339))
	}

	return text
}

// publishedAt falls back to lenient parsing for feeds with nonstandard
// date formats.
func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}

	if item.Published == "" {
		return nil
	}

	ts, err := dateparse.ParseAny(item.Published)
	if err != nil {
		return nil
	}

	return &ts
}
