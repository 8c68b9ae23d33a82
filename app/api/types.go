package api

import (
	"context"

	"github.com/letterhive/letterfeed/app/feed"
	"github.com/letterhive/letterfeed/app/tasks"
)

type FeedAggregatorInterface interface {
	FeedPage(ctx context.Context, sourceURLs []string, cursor string, pageSize int) feed.FeedPage
	SitemapPage(ctx context.Context, sourceURL string, page int) feed.SitemapPage
}

var _ FeedAggregatorInterface = (*feed.Aggregator)(nil)

type Handler struct {
	aggregator FeedAggregatorInterface
	bookmarks  feed.BookmarkProvider
	scheduler  tasks.TaskSchedulerInterface
	pageSize   int
}
