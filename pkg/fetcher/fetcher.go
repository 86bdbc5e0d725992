// Package fetcher downloads device data records from the Hologram CSR
// endpoint, following the server's continuation flag until the requested
// window is exhausted.
package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"

	"hologram-cli/internal/auth"
	"hologram-cli/pkg/models"
)

const (
	DefaultBaseURL   = "https://dashboard.hologram.io"
	DefaultPageLimit = 1000

	RecordsPath = "/api/1/csr/rdm"

	// Only the date prefix of "received" is used as the next page cursor.
	cursorLayout = "2006-01-02"

	maxErrorBody = 512
)

// Transport performs a single GET. Implemented by internal/client.
type Transport interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
}

// Params are the request parameters of one fetcher.
type Params struct {
	DeviceID  string
	APIKey    string
	OrgID     string
	Start     time.Time
	End       time.Time
	PageLimit int
	Live      bool // Only devices that are currently live
}

// Progress describes one downloaded page.
type Progress struct {
	Page       int
	From       time.Time
	To         time.Time
	New        int
	Duplicates int
}

type Option func(*Fetcher)

func WithPageLimit(n int) Option {
	return func(f *Fetcher) { f.params.PageLimit = n }
}

func WithLive(live bool) Option {
	return func(f *Fetcher) { f.params.Live = live }
}

func WithBaseURL(base string) Option {
	return func(f *Fetcher) { f.baseURL = strings.TrimRight(base, "/") }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithProgress registers a callback invoked after every page.
func WithProgress(fn func(Progress)) Option {
	return func(f *Fetcher) { f.progress = fn }
}

type Fetcher struct {
	transport Transport
	params    Params
	baseURL   string
	logger    *slog.Logger
	metrics   *Metrics
	progress  func(Progress)
}

// New configures a fetcher. No request is made.
func New(t Transport, deviceID, apiKey, orgID string, start, end time.Time, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		transport: t,
		params: Params{
			DeviceID:  deviceID,
			APIKey:    apiKey,
			OrgID:     orgID,
			Start:     start,
			End:       end,
			PageLimit: DefaultPageLimit,
		},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	switch {
	case t == nil:
		return nil, errors.NotValidf("nil transport")
	case deviceID == "":
		return nil, errors.NotValidf("empty device id")
	case apiKey == "":
		return nil, errors.NotValidf("empty api key")
	case orgID == "":
		return nil, errors.NotValidf("empty org id")
	case f.params.PageLimit <= 0:
		return nil, errors.NotValidf("page limit %d", f.params.PageLimit)
	case start.After(end):
		return nil, errors.NotValidf("time window %s..%s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	return f, nil
}

func (f *Fetcher) Params() Params {
	return f.params
}

// BuildRequestURL formats the request URL for the configured window.
func (f *Fetcher) BuildRequestURL() string {
	return f.buildURL(f.params.End)
}

func (f *Fetcher) buildURL(end time.Time) string {
	query := [][2]string{
		{"orgid", f.params.OrgID},
		{"deviceid", f.params.DeviceID},
		{"timestart", strconv.FormatInt(f.params.Start.Unix(), 10)},
		{"timeend", strconv.FormatInt(end.Unix(), 10)},
		{auth.APIKeyParam, f.params.APIKey},
		{"islive", strconv.FormatBool(f.params.Live)},
		{"limit", strconv.Itoa(f.params.PageLimit)},
	}

	var b strings.Builder
	b.WriteString(f.baseURL)
	b.WriteString(RecordsPath)
	for i, kv := range query {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// Fetch downloads every page of the window and returns the decoded records in
// the order the server sent them. Records repeated by overlapping pages are
// returned once. On error no records are returned.
//
// Each continuation narrows the end of the window to the date of the last new
// record, so the loop ends only when the server reports no more data.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.FinalRecord, error) {
	var (
		decoded []models.DecodedRecord
		seen    = make(map[string]struct{})
		end     = f.params.End
	)

	for page := 1; ; page++ {
		reqURL := f.buildURL(end)
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{URL: auth.RedactURL(reqURL), Err: err}
		}

		env, err := f.getPage(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		added, dups := 0, 0
		for _, rec := range env.Records {
			if _, ok := seen[rec.ID]; ok {
				dups++
				continue
			}
			d, err := DecodeRecord(rec)
			if err != nil {
				return nil, err
			}
			seen[rec.ID] = struct{}{}
			decoded = append(decoded, d)
			added++
		}
		f.metrics.page(added, dups)

		if !env.Continues {
			f.report(Progress{Page: page, From: f.params.Start, To: end, New: added, Duplicates: dups})
			break
		}

		if len(decoded) == 0 {
			return nil, &MalformedResponseError{Reason: "continues is set but no records were returned"}
		}
		last := decoded[len(decoded)-1]
		next, err := cursorDate(last.Received, end.Location())
		if err != nil {
			return nil, &MalformedResponseError{Reason: "record " + last.ID() + ": bad received date", Err: err}
		}
		if !next.Before(end) {
			f.logger.Warn("page cursor did not move back", "page", page, "cursor", next.Format(cursorLayout), "end", end)
		}

		f.report(Progress{Page: page, From: next, To: end, New: added, Duplicates: dups})
		end = next
	}

	records := make([]models.FinalRecord, 0, len(decoded))
	for _, d := range decoded {
		records = append(records, Finalize(d))
	}

	f.logger.Info("fetch complete", "device", f.params.DeviceID, "records", len(records))
	return records, nil
}

func (f *Fetcher) getPage(ctx context.Context, reqURL string) (models.RawEnvelope, error) {
	redacted := auth.RedactURL(reqURL)
	f.logger.Debug("requesting page", "url", redacted)

	status, body, err := f.transport.Get(ctx, reqURL)
	if err != nil {
		return models.RawEnvelope{}, &TransportError{URL: redacted, Err: err}
	}
	if status != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return models.RawEnvelope{}, &TransportError{StatusCode: status, URL: redacted, Body: string(body)}
	}

	return parseEnvelope(body)
}

func (f *Fetcher) report(p Progress) {
	f.logger.Info("downloaded page",
		"page", p.Page,
		"from", p.From.Format(cursorLayout),
		"to", p.To.Format(cursorLayout),
		"new", p.New,
		"duplicates", p.Duplicates,
	)
	if f.progress != nil {
		f.progress(p)
	}
}

// cursorDate parses the YYYY-MM-DD prefix of a received timestamp.
func cursorDate(received string, loc *time.Location) (time.Time, error) {
	if len(received) < len(cursorLayout) {
		return time.Time{}, errors.Errorf("received %q is too short", received)
	}
	return time.ParseInLocation(cursorLayout, received[:len(cursorLayout)], loc)
}
