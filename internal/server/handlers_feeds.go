package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

type addFeedRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) handleAddFeed(c *gin.Context) {
	projectID, ok := mustProjectID(c)
	if !ok {
		return
	}

	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		abortError(c, http.StatusBadRequest, "invalid_body", "url must be absolute")

		return
	}

	feedID, err := s.feeds.AddFeed(c.Request.Context(), projectID, req.URL, req.Title)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	c.JSON(http.StatusCreated, gin.H{"feedId": feedID})
}

func (s *Server) handleListFeeds(c *gin.Context) {
	feeds, err := s.feeds.ListFeeds(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	items := make([]gin.H, 0, len(feeds))
	for _, feed := range feeds {
		items = append(items, gin.H{
			"id":            feed.ID,
			"projectId":     feed.ProjectID,
			"url":           feed.URL,
			"title":         feed.Title,
			"lastFetchedAt": feed.LastFetchedAt,
			"createdAt":     feed.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
