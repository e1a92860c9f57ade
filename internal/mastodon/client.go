// Package mastodon adapts github.com/mattn/go-mastodon to the bot's
// notification and reply types.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	mstdn "github.com/mattn/go-mastodon"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/mention"
)

const (
	DefaultServer       = "https://mastoxiv.page"
	defaultPageLimit    = 40
	defaultTimeout      = 30 * time.Second
	maxPages            = 25
	mentionNotification = "mention"
)

// ErrMissingToken is returned when no access token is configured.
var ErrMissingToken = errors.New("mastodon access token is not set")

var lineBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</p>\s*`)

// Config describes the account the bot posts as.
type Config struct {
	Server      string
	AccessToken string
	HTTPClient  *http.Client
	PageLimit   int
	Logger      *zap.Logger
}

// Client fetches mentions and posts replies.
type Client struct {
	api       *mstdn.Client
	policy    *bluemonday.Policy
	pageLimit int
	logger    *zap.Logger
}

// New returns a client for cfg.Server.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingToken
	}
	server := strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if server == "" {
		server = DefaultServer
	}
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	api := mstdn.NewClient(&mstdn.Config{
		Server:      server,
		AccessToken: cfg.AccessToken,
	})
	if cfg.HTTPClient != nil {
		api.Client.Transport = cfg.HTTPClient.Transport
		api.Client.Timeout = cfg.HTTPClient.Timeout
	} else {
		api.Client.Timeout = defaultTimeout
	}
	api.UserAgent = "ragtoxiv"

	limit := cfg.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:       api,
		policy:    bluemonday.StrictPolicy(),
		pageLimit: limit,
		logger:    logger,
	}, nil
}

// Verify checks the token and returns the authenticated account handle.
func (c *Client) Verify(ctx context.Context) (string, error) {
	account, err := c.api.GetAccountCurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("verify credentials: %w", err)
	}
	return account.Acct, nil
}

// FetchMentions returns every mention notification newer than sinceID,
// oldest first. Pages are walked forward with min_id until the server has
// nothing newer, so a burst larger than one page is not skipped. An empty
// sinceID fetches the most recent page only.
func (c *Client) FetchMentions(ctx context.Context, sinceID string) ([]mention.Notification, error) {
	var (
		out      []mention.Notification
		received int
		requests int
	)
	cursor := sinceID
	for {
		pg := &mstdn.Pagination{Limit: int64(c.pageLimit)}
		if cursor != "" {
			pg.MinID = mstdn.ID(cursor)
		}
		raw, err := c.api.GetNotifications(ctx, pg)
		if err != nil {
			return nil, fmt.Errorf("fetch notifications: %w", err)
		}
		requests++
		received += len(raw)

		next := cursor
		for _, n := range raw {
			if n == nil || !idAfter(string(n.ID), cursor) {
				continue
			}
			if idAfter(string(n.ID), next) {
				next = string(n.ID)
			}
			if n.Type == mentionNotification {
				out = append(out, c.convert(n))
			}
		}
		if cursor == "" || next == cursor {
			break
		}
		if requests >= maxPages {
			// The cursor only moves past what was returned; the rest comes next cycle.
			c.logger.Warn("notification backlog exceeds page budget",
				zap.Int("pages", requests), zap.String("resume_after", next))
			break
		}
		cursor = next
	}

	sort.Slice(out, func(i, j int) bool { return idAfter(out[j].ID, out[i].ID) })
	c.logger.Debug("fetched notifications",
		zap.Int("requests", requests),
		zap.Int("received", received),
		zap.Int("mentions", len(out)),
		zap.String("since_id", sinceID),
	)
	return out, nil
}

// idAfter reports whether notification id a is newer than b. Ids are decimal
// strings of varying length; an empty b precedes everything.
func idAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

// PostReply publishes reply as a threaded status and returns its id.
func (c *Client) PostReply(ctx context.Context, reply mention.Reply) (string, error) {
	if reply.InReplyTo == "" {
		return "", errors.New("post reply: missing status reference")
	}
	visibility := reply.Visibility
	if visibility == "" {
		visibility = mention.VisibilityUnlisted
	}
	status, err := c.api.PostStatus(ctx, &mstdn.Toot{
		Status:      reply.Status(),
		InReplyToID: mstdn.ID(reply.InReplyTo),
		Visibility:  string(visibility),
	})
	if err != nil {
		return "", fmt.Errorf("post reply to %s: %w", reply.InReplyTo, err)
	}
	return string(status.ID), nil
}

func (c *Client) convert(n *mstdn.Notification) mention.Notification {
	out := mention.Notification{
		ID:        string(n.ID),
		Type:      n.Type,
		Author:    n.Account.Acct,
		CreatedAt: n.CreatedAt,
	}
	if n.Status == nil {
		return out
	}
	out.StatusID = string(n.Status.ID)
	out.Visibility = mention.Visibility(n.Status.Visibility)
	out.Text = c.plainText(n.Status.Content)
	for _, m := range n.Status.Mentions {
		out.Mentions = append(out.Mentions, m.Acct)
	}
	return out
}

// plainText turns status HTML into text, keeping paragraph and line breaks.
func (c *Client) plainText(content string) string {
	withBreaks := lineBreaks.ReplaceAllString(content, "\n")
	text := html.UnescapeString(c.policy.Sanitize(withBreaks))
	return strings.TrimSpace(text)
}
