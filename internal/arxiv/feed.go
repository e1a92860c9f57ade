package arxiv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/csheth/ragtoxiv/internal/retry"
)

const (
	defaultFeedBase        = "https://rss.arxiv.org/rss/"
	defaultRequestInterval = 5 * time.Second
	defaultFeedTimeout     = 30 * time.Second
)

var (
	errEmptyFeed   = errors.New("feed has no entries")
	abstractPrefix = regexp.MustCompile(`(?s)^.*?Abstract:\s*`)
)

// CollectorConfig configures the daily feed collector.
type CollectorConfig struct {
	BaseURL         string
	HTTPClient      *http.Client
	RequestInterval time.Duration
	Retry           retry.Policy
	Logger          *zap.Logger
}

// Collector turns the arXiv daily RSS announcement feed into snapshots.
type Collector struct {
	parser  *gofeed.Parser
	baseURL string
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *zap.Logger
	now     func() time.Time
}

// NewCollector builds a collector. Requests from one collector share a
// single limiter so several categories never hit arXiv back to back.
func NewCollector(cfg CollectorConfig) *Collector {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultFeedBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = defaultRequestInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFeedTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &Collector{
		parser:  parser,
		baseURL: base,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		policy:  cfg.Retry,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch downloads today's announcements for category. An empty feed is
// retried because arXiv occasionally serves one mid-update; if it stays
// empty the result is an empty snapshot rather than an error.
func (c *Collector) Fetch(ctx context.Context, category string) (Snapshot, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Snapshot{}, errors.New("category is required")
	}
	url := c.baseURL + category

	var last *gofeed.Feed
	feed, err := retry.Do(ctx, c.policy, nil, c.logger.With(zap.String("category", category)),
		func(ctx context.Context) (*gofeed.Feed, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			feed, err := c.parser.ParseURLWithContext(url, ctx)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", url, err)
			}
			last = feed
			if len(feed.Items) == 0 {
				return feed, errEmptyFeed
			}
			return feed, nil
		})
	if err != nil {
		if !errors.Is(err, errEmptyFeed) || last == nil {
			return Snapshot{}, err
		}
		c.logger.Warn("feed stayed empty", zap.String("category", category))
		feed = last
	}
	return c.snapshotFromFeed(category, feed), nil
}

func (c *Collector) snapshotFromFeed(category string, feed *gofeed.Feed) Snapshot {
	fetched := c.now().UTC()
	snapshot := Snapshot{
		Category:  category,
		FetchedAt: fetched.Format(time.RFC3339),
		Papers:    []Paper{},
	}

	updated := feed.PublishedParsed
	snapshot.FeedUpdated = feed.Published
	if updated == nil {
		updated = feed.UpdatedParsed
		snapshot.FeedUpdated = feed.Updated
	}
	if updated == nil {
		updated = &fetched
		snapshot.FeedUpdated = snapshot.FetchedAt
	}
	y, m, d := updated.Date()
	snapshot.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	for _, item := range feed.Items {
		kind := announceType(item)
		switch kind {
		case "new":
			snapshot.Stats.NewSubmissions++
		case "cross":
			snapshot.Stats.CrossLists++
		case "replace", "replace-cross":
			snapshot.Stats.Replacements++
		}
		snapshot.Stats.Total++
		if kind != "new" && kind != "cross" {
			continue
		}
		if paper, ok := paperFromItem(item, kind); ok {
			snapshot.Papers = append(snapshot.Papers, paper)
		}
	}
	return snapshot
}

func announceType(item *gofeed.Item) string {
	if ext, ok := item.Extensions["arxiv"]; ok {
		if values, ok := ext["announce_type"]; ok && len(values) > 0 {
			return strings.ToLower(strings.TrimSpace(values[0].Value))
		}
	}
	// Older feeds only carry the type inside the description.
	lower := strings.ToLower(item.Description)
	if idx := strings.Index(lower, "announce type:"); idx >= 0 {
		fields := strings.Fields(lower[idx+len("announce type:"):])
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return "new"
}

func paperFromItem(item *gofeed.Item, kind string) (Paper, bool) {
	id := extractIdentifier(item.Link)
	if id == "" {
		id = extractIdentifier(item.GUID)
	}
	if id == "" {
		return Paper{}, false
	}
	paper := Paper{
		ID:       id,
		Title:    normalizeWhitespace(item.Title),
		Authors:  itemAuthors(item),
		Abstract: normalizeWhitespace(abstractPrefix.ReplaceAllString(item.Description, "")),
		Label:    kind,
		AbsURL:   "https://arxiv.org/abs/" + id,
		PDFURL:   "https://arxiv.org/pdf/" + id,
		HTMLURL:  "https://arxiv.org/html/" + id,
	}
	if len(item.Categories) > 0 {
		paper.PrimarySubject = strings.TrimSpace(item.Categories[0])
	}
	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		paper.Published = &published
	}
	return paper, true
}

func itemAuthors(item *gofeed.Item) string {
	names := make([]string, 0, len(item.Authors))
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if name := strings.TrimSpace(author.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 && item.DublinCoreExt != nil {
		names = append(names, item.DublinCoreExt.Creator...)
	}
	return normalizeWhitespace(strings.Join(names, ", "))
}
