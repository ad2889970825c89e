package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brensch/campwatch/internal/campsite"
	"github.com/brensch/campwatch/internal/config"
	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/monitor"
	"github.com/brensch/campwatch/internal/report"
	"github.com/spf13/cobra"
)

var (
	flagFacilitiesFile string
	flagFacilities     []string
	flagDBPath         string
	flagWebAddr        string
	flagLogLevel       string
	flagFormat         string
	flagSchedule       string
	flagNotify         bool

	flagWindows []string
	flagDates   []string
	flagNights  int
	flagLimit   int
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campwatch",
		Short: "Watch recreation.gov campgrounds for consecutive-night availability",
		Long: `campwatch checks recreation.gov campgrounds for campsites that are free for
every night of a requested stay, and reports matches or the closest partial
availability. Configuration comes from the environment (or a .env file).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flagLogLevel)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagFacilitiesFile, "facilities-file", "", "JSON facility registry (defaults to CAMPWATCH_FACILITIES or the built-in list)")
	pf.StringSliceVar(&flagFacilities, "facility", nil, "Only check these facilities, by name (repeatable)")
	pf.StringVar(&flagDBPath, "db", "", "DuckDB file for the lookup log (overrides DB_PATH)")
	pf.StringVar(&flagWebAddr, "web-addr", "", "Serve status and metrics on this address (overrides WEB_ADDR)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(newCheckCmd(), newArrivalsCmd(), newFacilitiesCmd(), newHistoryCmd())
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flagSchedule, "schedule", "", "Cron expression to keep checking on, e.g. '*/10 * * * *' or '@every 15m'")
	cmd.Flags().BoolVar(&flagNotify, "notify", false, "Send matches to the configured SMS, SNS and Discord destinations")
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check stay windows given as start:end dates",
		Example: `  campwatch check --window 2025-07-20:2025-07-23
  campwatch check --window 2025-07-20:2025-07-23 --window 2025-08-01:2025-08-03 --facility "Upper Pines"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			windows := make([]monitor.Window, 0, len(flagWindows))
			for _, s := range flagWindows {
				w, err := monitor.ParseWindow(s)
				if err != nil {
					return err
				}
				windows = append(windows, w)
			}
			return runWindows(cmd.Context(), cmd.OutOrStdout(), windows)
		},
	}
	cmd.Flags().StringArrayVar(&flagWindows, "window", nil, "Stay window as YYYY-MM-DD:YYYY-MM-DD (repeatable)")
	cmd.MarkFlagRequired("window")
	addRunFlags(cmd)
	return cmd
}

func newArrivalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "arrivals",
		Short:   "Check a fixed number of nights from each arrival date",
		Example: `  campwatch arrivals --date 2025-07-20 --date 2025-07-27 --nights 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			arrivals, err := parseDates(flagDates)
			if err != nil {
				return err
			}
			windows, err := monitor.ArrivalWindows(arrivals, flagNights)
			if err != nil {
				return err
			}
			return runWindows(cmd.Context(), cmd.OutOrStdout(), windows)
		},
	}
	cmd.Flags().StringArrayVar(&flagDates, "date", nil, "Arrival date as YYYY-MM-DD (repeatable)")
	cmd.Flags().IntVar(&flagNights, "nights", 2, "Nights per stay")
	cmd.MarkFlagRequired("date")
	addRunFlags(cmd)
	return cmd
}

func parseDates(in []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(in))
	for _, s := range in {
		d, err := time.Parse(campsite.DayLayout, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q, want YYYY-MM-DD", campsite.ErrValidation, s)
		}
		out = append(out, d)
	}
	return out, nil
}

func checkFormat(f string) error {
	switch f {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", f)
}

func runWindows(ctx context.Context, out io.Writer, windows []monitor.Window) error {
	if err := checkFormat(flagFormat); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	if flagSchedule != "" {
		a, err := newApp(ctx, cfg, flagNotify, func(reports []report.Report) {
			if err := writeReports(out, reports); err != nil {
				slog.Warn("write reports failed", slog.Any("err", err))
			}
		})
		if err != nil {
			return err
		}
		defer a.close()
		return a.monitor.RunScheduled(ctx, flagSchedule, windows)
	}

	a, err := newApp(ctx, cfg, flagNotify, nil)
	if err != nil {
		return err
	}
	defer a.close()

	reports, err := a.monitor.Run(ctx, windows)
	if werr := writeReports(out, reports); werr != nil && err == nil {
		err = werr
	}
	return err
}

func writeReports(w io.Writer, reports []report.Report) error {
	if flagFormat == "json" {
		return report.WriteJSON(w, reports)
	}
	return report.WriteText(w, reports)
}

func newFacilitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "List the facility registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return writeFacilities(cmd.OutOrStdout(), cfg.Facilities)
		},
	}
	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search RIDB for camping facilities to add to the registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			found, err := newProvider(cfg).SearchFacilities(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tLAT\tLON")
			for _, f := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\n", f.ID, f.Name, f.Type, f.Lat, f.Lon)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(search)
	return cmd
}

func writeFacilities(w io.Writer, fs []config.Facility) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID")
	for _, f := range fs {
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, f.ID)
	}
	return tw.Flush()
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent checks and lookup counts from the lookup log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("history needs --db or DB_PATH")
			}
			store, err := db.OpenReadOnly(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return writeHistory(cmd.Context(), cmd.OutOrStdout(), store, cfg.Facilities, flagLimit)
		},
	}
	cmd.Flags().IntVar(&flagLimit, "limit", 20, "Number of recent checks to show")
	return cmd
}

func writeHistory(ctx context.Context, w io.Writer, store *db.Store, fs []config.Facility, limit int) error {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECKED\tFACILITY\tDATES\tSTATUS\tMATCHES\tPARTIAL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s to %s\t%s\t%d\t%d\n",
			r.CheckedAt.Local().Format(time.DateTime), r.Facility,
			r.Start.Format(campsite.DayLayout), r.End.Format(campsite.DayLayout),
			r.Status, r.Matches, r.Partial)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FACILITY\tLOOKUPS 24H\tFAILED 24H\tLAST")
	since := time.Now().Add(-24 * time.Hour)
	for _, f := range fs {
		st, err := store.LookupStatsFor(ctx, f.ID, since)
		if err != nil {
			return err
		}
		last := "-"
		if !st.Last.IsZero() {
			last = st.Last.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", f.Name, st.Total, st.Failed, last)
	}
	return tw.Flush()
}
