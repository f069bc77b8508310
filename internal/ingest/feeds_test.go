package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthlab/content-radar/internal/storage"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Radar Test Feed</title>
    <item>
      <title>First entry</title>
      <link>https://example.com/posts/1</link>
      <description>Something happened.</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 MST</pubDate>
    </item>
    <item>
      <title>Already seen</title>
      <link>https://example.com/posts/0</link>
      <description>Old news.</description>
    </item>
    <item>
      <title>No link</title>
      <description>Unlinkable.</description>
    </item>
  </channel>
</rss>`

type fakeStore struct {
	feeds    []storage.Feed
	seen     map[string]bool
	inserted []storage.Capture
	touched  []string
}

func (f *fakeStore) ListFeeds(_ context.Context) ([]storage.Feed, error) {
	return f.feeds, nil
}

func (f *fakeStore) TouchFeedFetched(_ context.Context, id string) error {
	f.touched = append(f.touched, id)

	return nil
}

func (f *fakeStore) CaptureExistsByURL(_ context.Context, url string) (bool, error) {
	return f.seen[url], nil
}

func (f *fakeStore) InsertCapture(_ context.Context, c storage.Capture) (string, error) {
	f.inserted = append(f.inserted, c)

	return "cap-1", nil
}

func newPollerWithFeed(t *testing.T, store *fakeStore, body string) *Poller {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	store.feeds = []storage.Feed{{ID: "feed-1", ProjectID: "project-1", URL: srv.URL}}

	nop := zerolog.Nop()

	return NewPoller(store, time.Minute, 5*time.Second, &nop)
}

func TestPollAllIngestsNewEntries(t *testing.T) {
	store := &fakeStore{seen: map[string]bool{"https://example.com/posts/0": true}}
	poller := newPollerWithFeed(t, store, rssBody)

	require.NoError(t, poller.pollAll(context.Background()))

	// Only the unseen, linked entry lands as a capture.
	require.Len(t, store.inserted, 1)
	capture := store.inserted[0]
	assert.Equal(t, "First entry", capture.Title)
	assert.Equal(t, "https://example.com/posts/1", capture.URL)
	assert.Equal(t, "project-1", capture.ProjectID)
	assert.Equal(t, "feed", capture.SourceTag)
	assert.Contains(t, capture.Text, "Something happened.")
	assert.Contains(t, capture.Text, "Published: 2006-01-02")

	assert.Equal(t, []string{"feed-1"}, store.touched)
}

func TestPollAllSurvivesBrokenFeed(t *testing.T) {
	store := &fakeStore{seen: map[string]bool{}}
	poller := newPollerWithFeed(t, store, "not xml at all")

	// A feed that fails to parse is logged and skipped, never fatal.
	require.NoError(t, poller.pollAll(context.Background()))
	assert.Empty(t, store.inserted)
	assert.Empty(t, store.touched)
}

func TestPublishedAtLenientParsing(t *testing.T) {
	ts := publishedAt(&gofeed.Item{Published: "2021-04-09 13:30:00"})
	require.NotNil(t, ts)
	assert.Equal(t, 2021, ts.Year())
}

func TestPublishedAtUnparseable(t *testing.T) {
	assert.Nil(t, publishedAt(&gofeed.Item{Published: "sometime last week"}))
}
