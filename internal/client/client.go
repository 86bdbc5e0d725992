package client

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/juju/errors"

	"hologram-cli/pkg/fetcher"
)

const DefaultTimeout = 30 * time.Second

var _ fetcher.Transport = (*HologramClient)(nil)

// HologramClient is the HTTP transport used by the record fetcher.
type HologramClient struct {
	HTTP   *resty.Client
	Config ClientConfig
}

type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Insecure bool // Skip TLS verification (local proxies with self-signed certs)
}

func New(cfg ClientConfig) *HologramClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = fetcher.DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	r := resty.New()
	r.SetBaseURL(cfg.BaseURL)
	r.SetTimeout(cfg.Timeout)
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", "hologram-cli")

	if cfg.Insecure {
		r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &HologramClient{
		HTTP:   r,
		Config: cfg,
	}
}

// Get issues a single GET and returns the status code and raw body.
// A non-2xx status is not an error here; the caller decides.
func (c *HologramClient) Get(ctx context.Context, url string) (int, []byte, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		Get(url)

	if err != nil {
		return 0, nil, errors.Trace(err)
	}

	return resp.StatusCode(), resp.Body(), nil
}
