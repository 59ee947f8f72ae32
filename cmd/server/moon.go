package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/magic-amatlan/backend/internal/locale"
	"github.com/magic-amatlan/backend/internal/lunar"
)

var (
	moonLang    string
	moonJSON    bool
	moonDate    string
	moonMax     int
	moonHorizon int
	moonYear    int
	moonMonth   int
)

var moonCmd = &cobra.Command{
	Use:   "moon",
	Short: "Query the lunar engine from the command line",
}

var moonPhaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Show the moon phase at a date (default now)",
	Example: `  amatlan moon phase
  amatlan moon phase --date 2026-10-14 --lang es`,
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := moonInstant()
		if err != nil {
			return err
		}
		namer, err := moonNamer()
		if err != nil {
			return err
		}
		d := lunar.ComputePhase(at).Localized(namer)
		if moonJSON {
			return writeJSON(cmd.OutOrStdout(), d)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", at.Format(time.DateOnly), d.DisplayName)
		fmt.Fprintf(out, "illumination  %d%%\n", d.Illumination)
		fmt.Fprintf(out, "age           %.2f days\n", d.AgeDays)
		if d.Description != "" {
			fmt.Fprintln(out, d.Description)
		}
		return nil
	},
}

var moonUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List the next principal phases after a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := moonInstant()
		if err != nil {
			return err
		}
		namer, err := moonNamer()
		if err != nil {
			return err
		}
		maxResults := moonMax
		if !cmd.Flags().Changed("max") {
			maxResults = cfg.Lunar.MaxResults
		}
		horizon := moonHorizon
		if !cmd.Flags().Changed("horizon") {
			horizon = cfg.Lunar.HorizonDays
		}

		onsets := lunar.UpcomingPrincipalPhases(from, maxResults, horizon)
		if moonJSON {
			return writeJSON(cmd.OutOrStdout(), onsets)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tPHASE\tNAME")
		for _, e := range onsets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Date.Format(time.DateOnly), e.Phase.ID(), namer.Name(e.Phase))
		}
		return w.Flush()
	},
}

var moonMonthCmd = &cobra.Command{
	Use:   "month",
	Short: "Print a month calendar with the phase of each day",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().In(cfg.Location())
		year, month := now.Year(), int(now.Month())
		if cmd.Flags().Changed("year") {
			year = moonYear
		}
		if cmd.Flags().Changed("month") {
			month = moonMonth
		}
		if month < 1 || month > 12 {
			return fmt.Errorf("month must be between 1 and 12")
		}

		namer, err := moonNamer()
		if err != nil {
			return err
		}
		cells := lunar.LocalizeGrid(lunar.BuildMonthGrid(year, time.Month(month), cfg.Location()), namer)
		if moonJSON {
			return writeJSON(cmd.OutOrStdout(), cells)
		}

		return printMonth(cmd.OutOrStdout(), year, time.Month(month), cells)
	},
}

func init() {
	moonCmd.PersistentFlags().StringVar(&moonLang, "lang", "", "Language for phase names, e.g. en or es")
	moonCmd.PersistentFlags().BoolVar(&moonJSON, "json", false, "Print JSON instead of text")

	moonPhaseCmd.Flags().StringVar(&moonDate, "date", "", "RFC 3339 timestamp or YYYY-MM-DD date")
	moonUpcomingCmd.Flags().StringVar(&moonDate, "from", "", "Start date, RFC 3339 or YYYY-MM-DD")
	moonUpcomingCmd.Flags().IntVar(&moonMax, "max", lunar.DefaultMaxResults, "Maximum number of phases")
	moonUpcomingCmd.Flags().IntVar(&moonHorizon, "horizon", lunar.DefaultHorizonDays, "Days to scan")
	moonMonthCmd.Flags().IntVar(&moonYear, "year", 0, "Year (default current)")
	moonMonthCmd.Flags().IntVar(&moonMonth, "month", 0, "Month 1-12 (default current)")

	moonCmd.AddCommand(moonPhaseCmd, moonUpcomingCmd, moonMonthCmd)
}

func moonInstant() (time.Time, error) {
	loc := cfg.Location()
	if moonDate == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339, moonDate); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, moonDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected RFC 3339 or YYYY-MM-DD", moonDate)
	}
	return t, nil
}

func moonNamer() (*locale.Namer, error) {
	catalog, err := locale.New(logger)
	if err != nil {
		return nil, err
	}
	lang := moonLang
	if lang == "" {
		lang = cfg.Lunar.DefaultLanguage
	}
	return catalog.Namer(lang), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMonth renders a Sunday-first week grid followed by the phase of each day.
func printMonth(w io.Writer, year int, month time.Month, cells []lunar.Cell) error {
	fmt.Fprintf(w, "%s %d\n", month, year)
	fmt.Fprintln(w, "Su Mo Tu We Th Fr Sa")

	var row strings.Builder
	for i, c := range cells {
		if c.IsPadding() {
			row.WriteString("   ")
		} else {
			fmt.Fprintf(&row, "%2d ", c.Date.Day())
		}
		if i%7 == 6 || i == len(cells)-1 {
			fmt.Fprintln(w, strings.TrimRight(row.String(), " "))
			row.Reset()
		}
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range cells {
		if c.IsPadding() {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d%%\n", c.Date.Format(time.DateOnly), c.Phase.DisplayName, c.Phase.Illumination)
	}
	return tw.Flush()
}
