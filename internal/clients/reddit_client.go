package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/spacesedan/forumpulse/internal/models"
)

type RedditConfig struct {
	ClientID          string
	ClientSecret      string
	UserAgent         string
	RequestsPerMinute int
	// BaseURL overrides the API host; empty picks oauth or public reddit.
	BaseURL string
	// TokenURL overrides the OAuth token endpoint.
	TokenURL string
}

// RedditClient reads subreddit listings. With client credentials it uses the
// OAuth API, otherwise the public .json endpoints.
type RedditClient struct {
	creds     *clientcredentials.Config
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	mu        sync.Mutex

	initialBackoff time.Duration
}

func NewRedditClient(cfg RedditConfig) *RedditClient {
	rc := &RedditClient{
		userAgent:      cfg.UserAgent,
		initialBackoff: INITIAL_BACKOFF,
	}
	if rc.userAgent == "" {
		rc.userAgent = USER_AGENT
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	rc.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = REDDIT_AUTH_URL
		}
		rc.creds = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		rc.client = rc.creds.Client(context.Background())
		rc.baseURL = REDDIT_OAUTH_URL
	} else {
		rc.client = &http.Client{Timeout: 30 * time.Second}
		rc.baseURL = REDDIT_PUBLIC_URL
	}
	if cfg.BaseURL != "" {
		rc.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	slog.Info("[RedditClient] Reddit client initialized",
		slog.String("base_url", rc.baseURL),
		slog.Bool("oauth", rc.creds != nil),
		slog.Int("rpm", rpm))
	return rc
}

func (rc *RedditClient) refreshClient() {
	if rc.creds == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.client = rc.creds.Client(context.Background())
}

func (rc *RedditClient) httpClient() *http.Client {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.client
}

// FetchNewPosts returns the newest posts of a subreddit, skipping stickied ones.
func (rc *RedditClient) FetchNewPosts(ctx context.Context, subreddit string, limit int) ([]models.Post, error) {
	path := "/r/" + url.PathEscape(subreddit) + "/new"
	if rc.creds == nil {
		path += ".json"
	}
	u, err := url.Parse(rc.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	u.RawQuery = q.Encode()

	body, err := rc.getWithRetry(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var listing models.RedditAPIResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("[RedditClient] decode r/%s listing: %w", subreddit, err)
	}

	now := time.Now().UTC()
	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Data.Stickied || child.Data.ID == "" {
			continue
		}
		posts = append(posts, ToPost(child.Data, now))
	}

	slog.Debug("[RedditClient] Fetched listing",
		slog.String("subreddit", subreddit),
		slog.Int("posts", len(posts)))
	return posts, nil
}

// ToPost maps one listing entry to a Post. Permalinks are made absolute.
func ToPost(d models.RedditAPIChildData, fetchedAt time.Time) models.Post {
	permalink := d.Permalink
	if strings.HasPrefix(permalink, "/") {
		permalink = REDDIT_PERMALINK + permalink
	}
	sec := int64(d.CreatedUTC)
	return models.Post{
		ID:          d.ID,
		Title:       d.Title,
		Body:        d.Selftext,
		Author:      d.Author,
		Score:       d.Score,
		Ups:         d.Ups,
		Downs:       d.Downs,
		NumComments: d.NumComments,
		CreatedAt:   time.Unix(sec, 0).UTC(),
		Permalink:   permalink,
		URL:         d.URL,
		Forum:       d.Subreddit,
		FetchedAt:   fetchedAt,
	}
}

func (rc *RedditClient) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	backoff := rc.initialBackoff
	refreshed := false

	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if err := rc.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, status, retryAfter, err := rc.get(ctx, rawURL)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("[RedditClient] Request failed",
				slog.Int("attempt", attempt), slog.Any("error", err))
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusUnauthorized && !refreshed:
			slog.Warn("[RedditClient] Token expired - Refreshing and Retrying...")
			rc.refreshClient()
			refreshed = true
			continue
		case status == http.StatusTooManyRequests || status >= 500:
			slog.Warn("[RedditClient] Retrying with backoff",
				slog.Int("status", status),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			if retryAfter > backoff {
				backoff = min(retryAfter, MAX_BACKOFF)
			}
		default:
			return nil, fmt.Errorf("[RedditClient] GET %s: unexpected status %d", rawURL, status)
		}

		if attempt == MAX_RETRIES {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}
	return nil, fmt.Errorf("[RedditClient] Max retries reached request failed: %s", rawURL)
}

func (rc *RedditClient) get(ctx context.Context, rawURL string) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.httpClient().Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	var retryAfter time.Duration
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		retryAfter = time.Duration(secs) * time.Second
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, retryAfter, nil
	}
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, retryAfter, err
}
