package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/imring/apptime/internal/output"
	"github.com/imring/apptime/internal/report"
	"github.com/imring/apptime/internal/store"
)

var (
	reportFocus       bool
	reportDate        string
	reportToday       bool
	reportMonth       bool
	reportYear        bool
	reportPath        string
	reportJSON        bool
	reportWindowNames bool

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Show time spent per application",
		Long: `Summarize recorded usage per application, longest first.

Intervals that cross the edge of the selected day, month or year are clipped
to it, so an application running from 23:00 to 01:00 counts one hour on each
day. Overlapping intervals of one application are counted once.

Dates are calendar dates in UTC, the timezone recordings are stored in.`,
		Example: `  # All recorded active time
  apptime report

  # Focused time today
  apptime report --focus --today

  # One day, one application, as JSON
  apptime report --date 2023-10-24 --path /usr/bin/firefox --json

  # Show window titles instead of executable names
  apptime report --month --window-names`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}
)

func init() {
	reportCmd.Flags().BoolVar(&reportFocus, "focus", false, "report focused time instead of running time")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "limit to a year, month or day: YYYY, YYYY-MM or YYYY-MM-DD")
	reportCmd.Flags().BoolVar(&reportToday, "today", false, "limit to the current day")
	reportCmd.Flags().BoolVar(&reportMonth, "month", false, "limit to the current month")
	reportCmd.Flags().BoolVar(&reportYear, "year", false, "limit to the current year")
	reportCmd.Flags().StringVar(&reportPath, "path", "", "limit to one executable path")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print JSON")
	reportCmd.Flags().BoolVar(&reportWindowNames, "window-names", false, "show window names instead of executable names")

	reportCmd.MarkFlagsMutuallyExclusive("date", "today", "month", "year")
}

func runReport(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(map[string]*pflag.Flag{
		"report.window_names": cmd.Flags().Lookup("window-names"),
	})
	if err != nil {
		return err
	}

	scope, err := reportScope(time.Now())
	if err != nil {
		return err
	}

	st, err := openExistingStore(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	log := store.ActiveLog
	if reportFocus {
		log = store.FocusLog
	}

	usages, err := report.New(st).Usage(commandContext(cmd), log,
		store.QueryOptions{Path: reportPath, Scope: scope},
		report.Options{WindowNames: cfg.Report.WindowNames})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(usages)
	}

	title := "Active time"
	if reportFocus {
		title = "Focused time"
	}
	if scope.IsZero() {
		fmt.Fprintf(out, "%s, all records\n\n", title)
	} else {
		fmt.Fprintf(out, "%s for %s\n\n", title, scope)
	}
	fmt.Fprint(out, output.RenderUsageTable(usages))
	return nil
}

// reportScope picks the period from the date flags. The shortcuts use the UTC
// calendar date of now.
func reportScope(now time.Time) (store.Scope, error) {
	now = now.UTC()
	switch {
	case reportToday:
		return store.DayOf(now), nil
	case reportMonth:
		return store.Month(now.Year(), now.Month()), nil
	case reportYear:
		return store.Year(now.Year()), nil
	}
	return store.ParseScope(reportDate)
}
