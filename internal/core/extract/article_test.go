package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractorReadableArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Launch Notes</title></head><body>
			<article>
				<h1>Launch Notes</h1>
				<p>The rollout reached twenty percent of users on the first day.</p>
				<p>Support tickets stayed flat, which nobody predicted.</p>
			</article>
		</body></html>`))
	}))
	defer srv.Close()

	e := NewExtractor(NewWebFetcher(100, 5*time.Second))

	article, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, article.Text, "twenty percent")
	assert.Contains(t, article.Text, "Support tickets stayed flat")
}

func TestExtractorFallbackStripsTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Bare Page</title>
			<script>var tracking = true;</script></head>
			<body><div>just a fragment of text</div></body></html>`))
	}))
	defer srv.Close()

	e := NewExtractor(NewWebFetcher(100, 5*time.Second))

	article, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, article.Text, "just a fragment of text")
	assert.NotContains(t, article.Text, "tracking")
}

func TestExtractorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewExtractor(NewWebFetcher(100, 5*time.Second))

	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestStripTags(t *testing.T) {
	text, title := stripTags([]byte(`<html><head><title>T</title><style>p{}</style></head><body><p>a</p><p>b</p></body></html>`))
	assert.Equal(t, "T a b", text)
	assert.Equal(t, "T", title)
}
