package cmd

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hologram-cli/internal/config"
	"hologram-cli/pkg/models"
)

type fixedTransport struct {
	status int
	body   string
	urls   []string
}

func (f *fixedTransport) Get(ctx context.Context, url string) (int, []byte, error) {
	f.urls = append(f.urls, url)
	return f.status, []byte(f.body), nil
}

func gather(t *testing.T, c prometheus.Collector) map[string][]*dto.Metric {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string][]*dto.Metric)
	for _, mf := range families {
		out[mf.GetName()] = mf.GetMetric()
	}
	return out
}

func testCollector(tr *fixedTransport) *RecordsCollector {
	now := time.Date(2021, 6, 5, 12, 0, 0, 0, time.UTC)
	return &RecordsCollector{
		Transport: tr,
		Settings:  config.Settings{BaseURL: "http://hologram.test", APIKey: "k", OrgID: "o", Timeout: time.Second},
		DeviceID:  "dev-1",
		Window:    time.Hour,
		Now:       func() time.Time { return now },
	}
}

func TestCollectorExportsNewestRecord(t *testing.T) {
	tr := &fixedTransport{status: http.StatusOK, body: recordBody(false, "r1", "2021-06-05 11:30:00", "21.5", "n/a", "48")}
	metrics := gather(t, testCollector(tr))

	require.Len(t, tr.urls, 1)
	assert.Contains(t, tr.urls[0], "http://hologram.test/api/1/csr/rdm?")

	assert.Equal(t, 1.0, metrics["hologram_up"][0].GetGauge().GetValue())
	assert.Equal(t, 1.0, metrics["hologram_records"][0].GetGauge().GetValue())
	assert.Equal(t, float64(time.Date(2021, 6, 5, 11, 30, 0, 0, time.UTC).Unix()),
		metrics["hologram_latest_record_timestamp_seconds"][0].GetGauge().GetValue())

	fields := metrics["hologram_latest_field_value"]
	require.Len(t, fields, 2, "non-numeric fields are skipped")
	values := map[string]float64{}
	for _, m := range fields {
		for _, l := range m.GetLabel() {
			if l.GetName() == "index" {
				values[l.GetValue()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"0": 21.5, "2": 48}, values)
}

func TestCollectorReportsFailure(t *testing.T) {
	tr := &fixedTransport{status: http.StatusUnauthorized, body: "bad key"}
	metrics := gather(t, testCollector(tr))

	assert.Equal(t, 0.0, metrics["hologram_up"][0].GetGauge().GetValue())
	assert.NotContains(t, metrics, "hologram_records")
}

func TestNewestRecord(t *testing.T) {
	t.Parallel()

	r, at, ok := newestRecord([]models.FinalRecord{
		{ID: "old", Received: "2021-06-01 00:00:00"},
		{ID: "bad", Received: "garbage"},
		{ID: "new", Received: "2021-06-03T10:00:00Z"},
	})
	require.True(t, ok)
	assert.Equal(t, "new", r.ID)
	assert.Equal(t, 2021, at.Year())

	_, _, ok = newestRecord(nil)
	assert.False(t, ok)
}

func TestServiceArgumentsCarryNoCredentials(t *testing.T) {
	t.Parallel()

	args := serviceArguments("/etc/hologram/cli.yaml", "dev-1", 30*time.Minute, "9101", true)
	assert.Equal(t, []string{
		"exporter",
		"--config", "/etc/hologram/cli.yaml",
		"--device", "dev-1",
		"--window", "30m0s",
		"--port", "9101",
		"--live",
	}, args)
	for _, a := range args {
		assert.NotEqual(t, "--api-key", a)
		assert.NotEqual(t, "--org-id", a)
	}
}
