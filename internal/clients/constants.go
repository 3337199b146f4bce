package clients

import "time"

const (
	MAX_RETRIES     = 5
	INITIAL_BACKOFF = 1 * time.Second
	MAX_BACKOFF     = 32 * time.Second
	USER_AGENT      = "forumpulse-bot/1.0 (+https://github.com/spacesedan/forumpulse)"

	REDDIT_AUTH_URL   = "https://www.reddit.com/api/v1/access_token"
	REDDIT_OAUTH_URL  = "https://oauth.reddit.com"
	REDDIT_PUBLIC_URL = "https://www.reddit.com"
	REDDIT_PERMALINK  = "https://reddit.com"

	VALKEY_PROCESSED_TTL = 24 * time.Hour
)
