package auth

import (
	"net/url"
	"strings"
)

// APIKeyParam is the query parameter carrying the Hologram API key.
const APIKeyParam = "apikey"

const redacted = "REDACTED"

// RedactURL masks the API key in a request URL so it can be logged or
// embedded in an error. Unparsable input is returned with everything after
// the "?" dropped.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}

	q := u.Query()
	if q.Get(APIKeyParam) == "" {
		return rawURL
	}
	q.Set(APIKeyParam, redacted)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedactKey keeps the last four characters of a key for display.
func RedactKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
