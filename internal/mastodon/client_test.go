package mastodon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/mention"
)

const notificationsJSON = `[
  {
    "id": "302",
    "type": "favourite",
    "created_at": "2025-01-07T10:05:00.000Z",
    "account": {"id": "11", "username": "bob", "acct": "bob@other.example"}
  },
  {
    "id": "301",
    "type": "mention",
    "created_at": "2025-01-07T10:00:00.000Z",
    "account": {"id": "10", "username": "alice", "acct": "alice@other.example"},
    "status": {
      "id": "9001",
      "visibility": "unlisted",
      "content": "<p><span class=\"h-card\"><a href=\"https://mastoxiv.page/@ragtoXiv\" class=\"u-url mention\">@<span>ragtoXiv</span></a></span> any papers on diffusion &amp; flows?</p><p>thanks</p>",
      "mentions": [{"id": "1", "username": "ragtoXiv", "acct": "ragtoXiv", "url": "https://mastoxiv.page/@ragtoXiv"}]
    }
  },
  {
    "id": "300",
    "type": "mention",
    "created_at": "2025-01-07T09:00:00.000Z",
    "account": {"id": "12", "username": "carol", "acct": "carol"},
    "status": {
      "id": "9000",
      "visibility": "direct",
      "content": "<p>@ragtoXiv secret<br>question</p>",
      "mentions": [{"id": "1", "username": "ragtoXiv", "acct": "ragtoXiv", "url": "https://mastoxiv.page/@ragtoXiv"}]
    }
  }
]`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{Server: srv.URL, AccessToken: "token", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return client
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{Server: "https://example.social"})
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestFetchMentions(t *testing.T) {
	var (
		mu      sync.Mutex
		minIDs  []string
		gotAuth string
	)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/notifications", r.URL.Path)
		mu.Lock()
		minIDs = append(minIDs, r.URL.Query().Get("min_id"))
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(notificationsJSON))
	}))

	got, err := client.FetchMentions(context.Background(), "250")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"250", "302"}, minIDs, "second page starts after the newest id seen")
	assert.Equal(t, "Bearer token", gotAuth)
	mu.Unlock()

	require.Len(t, got, 2)
	assert.Equal(t, "300", got[0].ID, "oldest mention first")
	assert.Equal(t, mention.VisibilityDirect, got[0].Visibility)
	assert.Equal(t, "@ragtoXiv secret\nquestion", got[0].Text)

	alice := got[1]
	assert.Equal(t, "301", alice.ID)
	assert.Equal(t, mention.TypeMention, alice.Type)
	assert.Equal(t, "alice@other.example", alice.Author)
	assert.Equal(t, "9001", alice.StatusID)
	assert.Equal(t, mention.VisibilityUnlisted, alice.Visibility)
	assert.Equal(t, []string{"ragtoXiv"}, alice.Mentions)
	assert.Equal(t, "@ragtoXiv any papers on diffusion & flows?\nthanks", alice.Text)
	assert.False(t, alice.CreatedAt.IsZero())
}

func TestPostReplyIsUnlistedThreadedReply(t *testing.T) {
	var (
		mu   sync.Mutex
		form map[string]string
	)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/statuses", r.URL.Path)
		require.NoError(t, r.ParseForm())
		mu.Lock()
		form = map[string]string{
			"status":         r.PostForm.Get("status"),
			"in_reply_to_id": r.PostForm.Get("in_reply_to_id"),
			"visibility":     r.PostForm.Get("visibility"),
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "9100", "visibility": "unlisted", "content": "ok"}`))
	}))

	id, err := client.PostReply(context.Background(), mention.Reply{
		InReplyTo: "9001",
		Author:    "alice@other.example",
		Text:      "Here are three papers.",
	})
	require.NoError(t, err)
	assert.Equal(t, "9100", id)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "@alice@other.example Here are three papers.", form["status"])
	assert.Equal(t, "9001", form["in_reply_to_id"])
	assert.Equal(t, "unlisted", form["visibility"])
}

func TestPostReplyServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
	}))

	_, err := client.PostReply(context.Background(), mention.Reply{InReplyTo: "1", Text: "x"})
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/accounts/verify_credentials", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "1", "username": "ragtoXiv", "acct": "ragtoXiv"}`))
	}))

	acct, err := client.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ragtoXiv", acct)
}

// pagedNotifications serves ids [first, last] the way Mastodon does: newest
// first, at most limit per page, bounded below by since_id or min_id. With
// min_id the page is the oldest limit ids above it; otherwise the newest.
func pagedNotifications(t *testing.T, first, last int) (http.Handler, func() int) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests int
	)
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return requests
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()

		q := r.URL.Query()
		limit, err := strconv.Atoi(q.Get("limit"))
		require.NoError(t, err)
		lower, fromOldest := first-1, false
		if v := q.Get("min_id"); v != "" {
			lower, err = strconv.Atoi(v)
			require.NoError(t, err)
			fromOldest = true
		} else if v := q.Get("since_id"); v != "" {
			lower, err = strconv.Atoi(v)
			require.NoError(t, err)
		}

		var ids []int
		for id := lower + 1; id <= last; id++ {
			ids = append(ids, id)
		}
		if len(ids) > limit {
			if fromOldest {
				ids = ids[:limit]
			} else {
				ids = ids[len(ids)-limit:]
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ids)))

		var b strings.Builder
		b.WriteString("[")
		for i, id := range ids {
			if i > 0 {
				b.WriteString(",")
			}
			kind := "mention"
			if id%5 == 0 {
				kind = "favourite"
			}
			fmt.Fprintf(&b, `{"id":"%d","type":"%s","created_at":"2025-01-07T10:00:00.000Z",`+
				`"account":{"id":"7","username":"alice","acct":"alice"},`+
				`"status":{"id":"s%d","visibility":"public","content":"<p>@ragtoXiv q</p>",`+
				`"mentions":[{"id":"1","username":"ragtoXiv","acct":"ragtoXiv"}]}}`, id, kind, id)
		}
		b.WriteString("]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(b.String()))
	}), count
}

func TestFetchMentionsWalksEveryPageSinceCursor(t *testing.T) {
	handler, requests := pagedNotifications(t, 101, 150)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{Server: srv.URL, AccessToken: "token", HTTPClient: srv.Client(), PageLimit: 20, Logger: zap.NewNop()})
	require.NoError(t, err)

	got, err := client.FetchMentions(context.Background(), "100")
	require.NoError(t, err)

	var want []string
	for id := 101; id <= 150; id++ {
		if id%5 != 0 {
			want = append(want, strconv.Itoa(id))
		}
	}
	ids := make([]string, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, want, ids, "all mentions, oldest first, none skipped")
	assert.Equal(t, 4, requests(), "three full pages plus the empty one")
}

func TestFetchMentionsWithoutCursorReadsLatestPage(t *testing.T) {
	handler, requests := pagedNotifications(t, 101, 150)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{Server: srv.URL, AccessToken: "token", HTTPClient: srv.Client(), PageLimit: 20})
	require.NoError(t, err)

	got, err := client.FetchMentions(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, requests())
	require.Len(t, got, 16)
	assert.Equal(t, "131", got[0].ID)
	assert.Equal(t, "149", got[len(got)-1].ID)
}

func TestIDAfter(t *testing.T) {
	assert.True(t, idAfter("1000", "999"))
	assert.True(t, idAfter("110", "109"))
	assert.False(t, idAfter("109", "110"))
	assert.False(t, idAfter("110", "110"))
	assert.True(t, idAfter("1", ""))
}
