package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/letterhive/letterfeed/app/feed"
	"github.com/letterhive/letterfeed/app/sitemap"
	"github.com/letterhive/letterfeed/app/tasks"
)

func NewHandler(aggregator FeedAggregatorInterface, bookmarks feed.BookmarkProvider,
	scheduler tasks.TaskSchedulerInterface, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = feed.DefaultPageSize
	}
	return &Handler{
		aggregator: aggregator,
		bookmarks:  bookmarks,
		scheduler:  scheduler,
		pageSize:   pageSize,
	}
}

// GetFeed serves the cross-source merged feed. Sources come from the
// comma-separated "sources" query parameter, defaulting to the caller's
// bookmarked sources when omitted.
func (h *Handler) GetFeed(c *gin.Context) {
	sourceURLs := splitSources(c.Query("sources"))
	if len(sourceURLs) == 0 {
		var err error
		sourceURLs, err = h.bookmarks.Sources(c.Request.Context())
		if err != nil {
			slog.Error("Failed to resolve bookmarked sources", "error", err)
			c.JSON(http.StatusOK, feed.FeedPage{Entries: []feed.FeedEntry{}})
			return
		}
	}

	pageSize := h.pageSize
	if raw := c.Query("page_size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			pageSize = parsed
		}
	}

	page := h.aggregator.FeedPage(c.Request.Context(), sourceURLs, c.Query("cursor"), pageSize)
	if page.Entries == nil {
		page.Entries = []feed.FeedEntry{}
	}

	c.JSON(http.StatusOK, page)
}

// GetSitemap serves one source's entries, offset-paginated via the 1-indexed
// "page" query parameter.
func (h *Handler) GetSitemap(c *gin.Context) {
	sourceURL := c.Query("url")
	if sourceURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			page = parsed
		}
	}

	result := h.aggregator.SitemapPage(c.Request.Context(), sourceURL, page)
	if result.Entries == nil {
		result.Entries = []sitemap.Entry{}
	}

	c.JSON(http.StatusOK, result)
}

// PostRefresh enqueues a full rebuild for every known source. Used to warm
// the cache ahead of traffic; the rebuilds themselves run on the scheduler
// workers.
func (h *Handler) PostRefresh(c *gin.Context) {
	queued, err := h.scheduler.RefreshAll(c.Request.Context())
	if err != nil {
		slog.Error("Failed to enqueue refresh tasks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue refresh tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"queued":  queued,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	})
}

func splitSources(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
