package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"hologram-cli/internal/client"
	"hologram-cli/internal/config"
	"hologram-cli/internal/store"
	"hologram-cli/pkg/fetcher"
	"hologram-cli/pkg/models"
)

var (
	recDevice string
	recStart  string
	recEnd    string
	recSince  string
	recLimit  int
	recLive   bool
	recCSV    string
	recSQLite string
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Download device data records",
	Long: `Downloads every record a device sent in a time window, following the API's
continuation pages, and prints the decoded payload fields.

Examples:
  hologram-cli records --device 123456 --start 2021-06-01 --end 2021-07-01
  hologram-cli records --device 123456 --since 24h --csv out.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Load()
		if err := settings.Validate(); err != nil {
			return err
		}

		start, end, err := resolveWindow(recStart, recEnd, recSince, time.Now())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		f, err := newFetcher(settings, recDevice, start, end,
			fetcher.WithPageLimit(recLimit),
			fetcher.WithLive(recLive),
		)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Downloading device %s from %s to %s...\n",
			recDevice, start.Format(time.RFC3339), end.Format(time.RFC3339))

		records, err := f.Fetch(ctx)
		if err != nil {
			return errors.Annotatef(err, "fetch device %s", recDevice)
		}

		if recSQLite != "" {
			if err := saveSQLite(ctx, recSQLite, recDevice, records); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved %d records to %s\n", len(records), recSQLite)
		}

		if recCSV != "" {
			if err := writeCSVFile(recCSV, records); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", len(records), recCSV)
			return nil
		}

		// --- JSON OUTPUT ---
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return errors.Trace(enc.Encode(records))
		}

		if len(records) == 0 {
			fmt.Println("No records found in this time range.")
			return nil
		}
		return writeTable(os.Stdout, records)
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().StringVarP(&recDevice, "device", "d", "", "Device ID")
	recordsCmd.Flags().StringVar(&recStart, "start", "", "Window start (YYYY-MM-DD or RFC3339, local time)")
	recordsCmd.Flags().StringVar(&recEnd, "end", "", "Window end (default now)")
	recordsCmd.Flags().StringVar(&recSince, "since", "24h", "Look back duration when --start is not set (e.g. 30m, 24h, 720h)")
	recordsCmd.Flags().IntVar(&recLimit, "limit", fetcher.DefaultPageLimit, "Records per page")
	recordsCmd.Flags().BoolVar(&recLive, "live", false, "Only return data from live devices")
	recordsCmd.Flags().StringVar(&recCSV, "csv", "", "Write records to a CSV file instead of stdout")
	recordsCmd.Flags().StringVar(&recSQLite, "sqlite", "", "Also upsert records into a SQLite database")

	_ = recordsCmd.MarkFlagRequired("device")
}

func newFetcher(s config.Settings, deviceID string, start, end time.Time, opts ...fetcher.Option) (*fetcher.Fetcher, error) {
	api := client.New(client.ClientConfig{BaseURL: s.BaseURL, Timeout: s.Timeout})
	opts = append([]fetcher.Option{
		fetcher.WithBaseURL(api.Config.BaseURL),
		fetcher.WithLogger(slog.Default()),
	}, opts...)
	return fetcher.New(api, deviceID, s.APIKey, s.OrgID, start, end, opts...)
}

// parseTime accepts a date (midnight local time) or an RFC3339 timestamp.
func parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NotValidf("time %q (want YYYY-MM-DD or RFC3339)", s)
	}
	return t, nil
}

func resolveWindow(start, end, since string, now time.Time) (time.Time, time.Time, error) {
	to := now
	if end != "" {
		t, err := parseTime(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}

	if start != "" {
		from, err := parseTime(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return from, to, nil
	}

	d, err := time.ParseDuration(since)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NotValidf("duration %q", since)
	}
	return to.Add(-d), to, nil
}

func fieldCount(records []models.FinalRecord) int {
	n := 0
	for _, r := range records {
		if r.Len() > n {
			n = r.Len()
		}
	}
	return n
}

func writeCSV(w io.Writer, records []models.FinalRecord) error {
	n := fieldCount(records)
	cw := csv.NewWriter(w)

	header := []string{models.IdentifierKey, "received"}
	for i := 0; i < n; i++ {
		header = append(header, strconv.Itoa(i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := append([]string{r.ID, r.Received}, r.Values()...)
		for len(row) < len(header) {
			row = append(row, "")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeCSVFile reports the Close error too; a failed final flush means a truncated file.
func writeCSVFile(path string, records []models.FinalRecord) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Annotatef(cerr, "close %s", path)
		}
	}()

	return errors.Annotatef(writeCSV(out, records), "write %s", path)
}

func writeTable(out io.Writer, records []models.FinalRecord) error {
	n := fieldCount(records)
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	header := []string{"ID", "RECEIVED"}
	for i := 0; i < n; i++ {
		header = append(header, strconv.Itoa(i))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Received, strings.Join(r.Values(), "\t"))
	}
	return w.Flush()
}

func saveSQLite(ctx context.Context, path, deviceID string, records []models.FinalRecord) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	return db.SaveRecords(ctx, deviceID, records)
}
