package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"hologram-cli/internal/client"
	"hologram-cli/internal/config"
	"hologram-cli/pkg/fetcher"
	"hologram-cli/pkg/models"
)

// Variables to hold flag values
var (
	expDevice     string
	expWindow     time.Duration
	expLive       bool
	expPort       string
	serviceAction string // "install", "uninstall", "start", "stop"
)

// --- SERVICE WRAPPER ---

// program implements the kardianos/service interface
type program struct {
	exit      chan struct{}
	server    *http.Server
	collector *RecordsCollector
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	p.exit = make(chan struct{})
	go p.run()
	return nil
}

func (p *program) run() {
	registry := prometheus.NewRegistry()
	m, err := fetcher.NewMetrics(registry)
	if err != nil {
		slog.Error("register fetcher metrics", "error", err)
		os.Exit(1)
	}
	p.collector.Metrics = m
	registry.MustRegister(p.collector)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	addr := fmt.Sprintf(":%s", expPort)
	p.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("hologram exporter listening", "addr", addr, "device", p.collector.DeviceID, "window", p.collector.Window)

	if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("HTTP server error", "error", err)
	}
}

func (p *program) Stop(s service.Service) error {
	// Stop should not block. Signal the app to stop.
	slog.Info("stopping service")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			slog.Warn("server forced to shutdown", "error", err)
		}
	}
	close(p.exit)
	return nil
}

// --- COLLECTOR LOGIC ---

// RecordsCollector downloads the last Window of records on every scrape.
type RecordsCollector struct {
	Transport fetcher.Transport
	Settings  config.Settings
	DeviceID  string
	Window    time.Duration
	Live      bool
	Metrics   *fetcher.Metrics
	Now       func() time.Time
	Mutex     sync.Mutex
}

var (
	upDesc = prometheus.NewDesc(
		"hologram_up", "Was the last fetch successful.", []string{"device"}, nil,
	)
	scrapeDurationDesc = prometheus.NewDesc(
		"hologram_scrape_duration_seconds", "Time taken to fetch the window.", []string{"device"}, nil,
	)
	recordsDesc = prometheus.NewDesc(
		"hologram_records", "Records received in the window.", []string{"device"}, nil,
	)
	latestDesc = prometheus.NewDesc(
		"hologram_latest_record_timestamp_seconds", "Received time of the newest record.", []string{"device"}, nil,
	)
	fieldDesc = prometheus.NewDesc(
		"hologram_latest_field_value", "Numeric payload fields of the newest record.", []string{"device", "index"}, nil,
	)
)

func (c *RecordsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- scrapeDurationDesc
	ch <- recordsDesc
	ch <- latestDesc
	ch <- fieldDesc
}

func (c *RecordsCollector) Collect(ch chan<- prometheus.Metric) {
	c.Mutex.Lock()
	defer c.Mutex.Unlock()
	start := time.Now()

	records, err := c.fetch()
	success := 1.0
	if err != nil {
		success = 0.0
		slog.Error("scrape failed", "device", c.DeviceID, "error", err)
	} else {
		ch <- prometheus.MustNewConstMetric(recordsDesc, prometheus.GaugeValue, float64(len(records)), c.DeviceID)

		if latest, at, ok := newestRecord(records); ok {
			ch <- prometheus.MustNewConstMetric(latestDesc, prometheus.GaugeValue, float64(at.Unix()), c.DeviceID)
			for i, v := range latest.Values() {
				f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				if err != nil {
					continue
				}
				ch <- prometheus.MustNewConstMetric(fieldDesc, prometheus.GaugeValue, f, c.DeviceID, strconv.Itoa(i))
			}
		}
	}

	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, success, c.DeviceID)
	ch <- prometheus.MustNewConstMetric(scrapeDurationDesc, prometheus.GaugeValue, time.Since(start).Seconds(), c.DeviceID)
}

func (c *RecordsCollector) fetch() ([]models.FinalRecord, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	end := now()

	timeout := c.Settings.Timeout
	if timeout <= 0 {
		timeout = client.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	f, err := fetcher.New(c.Transport, c.DeviceID, c.Settings.APIKey, c.Settings.OrgID, end.Add(-c.Window), end,
		fetcher.WithBaseURL(c.Settings.BaseURL),
		fetcher.WithLive(c.Live),
		fetcher.WithMetrics(c.Metrics),
		fetcher.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx)
}

var receivedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// receivedTime parses a record's received string, which the API reports
// without a zone; such values are taken as UTC.
func receivedTime(s string) (time.Time, bool) {
	for _, layout := range receivedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func newestRecord(records []models.FinalRecord) (models.FinalRecord, time.Time, bool) {
	var (
		best   models.FinalRecord
		bestAt time.Time
		found  bool
	)
	for _, r := range records {
		at, ok := receivedTime(r.Received)
		if !ok {
			continue
		}
		if !found || at.After(bestAt) {
			best, bestAt, found = r, at, true
		}
	}
	return best, bestAt, found
}

// --- COMMAND ---

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Start Prometheus Exporter service",
	Long: `Starts a long-running HTTP server that downloads a device's recent records
on every scrape and exposes them as metrics. Can be installed as a system service.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := config.Load()
		if err := settings.Validate(); err != nil {
			log.Fatal(err)
		}

		// 1. Define Service Configuration
		svcConfig := &service.Config{
			Name:        "hologram-exporter",
			DisplayName: "Hologram Prometheus Exporter",
			Description: "Exposes Hologram device records to Prometheus",
			// Credentials are read from the config file, never passed as arguments.
			Arguments: serviceArguments(config.FilePath(), expDevice, expWindow, expPort, expLive),
		}

		prg := &program{
			collector: &RecordsCollector{
				Transport: client.New(client.ClientConfig{BaseURL: settings.BaseURL, Timeout: settings.Timeout}),
				Settings:  settings,
				DeviceID:  expDevice,
				Window:    expWindow,
				Live:      expLive,
			},
		}

		s, err := service.New(prg, svcConfig)
		if err != nil {
			log.Fatal(err)
		}

		// 2. Handle Service Control Actions (Install, Start, Stop, Uninstall)
		if serviceAction != "" {
			if serviceAction == "install" {
				// Flag or env credentials must reach the file the service reads.
				if err := config.SaveCredentials(settings.APIKey, settings.OrgID, settings.BaseURL); err != nil {
					log.Fatalf("Failed to save credentials for the service: %v", err)
				}
			}
			err = service.Control(s, serviceAction)
			if err != nil {
				log.Fatalf("Failed to %s service: %v", serviceAction, err)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return
		}

		// 3. Run the Service (Blocking)
		logger, err := s.Logger(nil)
		if err != nil {
			log.Fatal(err)
		}
		if err = s.Run(); err != nil {
			_ = logger.Error(err)
		}
	},
}

func serviceArguments(cfgPath, device string, window time.Duration, port string, live bool) []string {
	args := []string{
		"exporter",
		"--config", cfgPath,
		"--device", device,
		"--window", window.String(),
		"--port", port,
	}
	if live {
		args = append(args, "--live")
	}
	return args
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().StringVarP(&expDevice, "device", "d", "", "Device ID")
	exporterCmd.Flags().DurationVar(&expWindow, "window", time.Hour, "Look back window fetched on every scrape")
	exporterCmd.Flags().BoolVar(&expLive, "live", false, "Only return data from live devices")
	exporterCmd.Flags().StringVar(&expPort, "port", "9101", "Port to listen on")
	exporterCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")

	_ = exporterCmd.MarkFlagRequired("device")
}
