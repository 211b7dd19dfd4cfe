package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notewatch/internal/db"
	"notewatch/internal/ingest"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Re-run anomaly detection over stored notes",
	Long: `Re-runs detection for every note, or one patient's notes, using the
current configuration. Notes with fewer than 2 earlier notes are skipped.`,
	RunE: rescore,
}

var flaggedCmd = &cobra.Command{
	Use:   "flagged",
	Short: "List flagged notes, highest score first",
	RunE:  listFlagged,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show patient, note and flagged note counts",
	RunE:  showStats,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Explain a text against history files without touching the database",
	Example: `  notewatch check --file today.txt --history mon.txt --history tue.txt
  notewatch check --text "..." --history a.md,b.md`,
	RunE: check,
}

var (
	rescorePatient int64
	rescoreWorkers int

	checkText    string
	checkFile    string
	checkHistory []string
)

func init() {
	rescoreCmd.Flags().Int64Var(&rescorePatient, "patient", 0, "Only rescore this patient's notes")
	rescoreCmd.Flags().IntVar(&rescoreWorkers, "workers", 0, "Parallel workers (default: pipeline.workers)")

	checkCmd.Flags().StringVar(&checkText, "text", "", "Text to check")
	checkCmd.Flags().StringVar(&checkFile, "file", "", "File holding the text to check")
	checkCmd.Flags().StringSliceVar(&checkHistory, "history", nil, "Earlier notes, most recent first")
	checkCmd.MarkFlagsMutuallyExclusive("text", "file")
	checkCmd.MarkFlagsOneRequired("text", "file")
}

func rescore(cmd *cobra.Command, args []string) error {
	svc, err := rt.service()
	if err != nil {
		return err
	}
	var patient *int64
	if cmd.Flags().Changed("patient") {
		patient = &rescorePatient
	}

	summary, err := svc.Rescore(cmd.Context(), patient, rescoreWorkers)
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d notes, %d scored, %d flagged, %d skipped, %d failed in %s\n",
		summary.RunID, summary.Total, summary.Scored, summary.Flagged, summary.Skipped,
		len(summary.Failures), summary.Duration.Round(time.Millisecond))
	if err != nil {
		return err
	}
	if len(summary.Failures) > 0 {
		errs := make([]error, 0, len(summary.Failures))
		for _, f := range summary.Failures {
			errs = append(errs, f)
		}
		return errors.Join(errs...)
	}
	return nil
}

func listFlagged(cmd *cobra.Command, args []string) error {
	svc, err := rt.service()
	if err != nil {
		return err
	}
	notes, err := svc.Flagged(cmd.Context())
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no flagged notes")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NOTE\tPATIENT\tSCORE\tCREATED\tTITLE")
	for _, n := range notes {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", n.ID, n.PatientID, formatScore(n), n.CreatedAt.Format("2006-01-02 15:04"), n.Title)
	}
	return tw.Flush()
}

// formatScore renders "-" for notes that were never scored.
func formatScore(n db.Note) string {
	if n.AnomalyScore == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *n.AnomalyScore)
}

func showStats(cmd *cobra.Command, args []string) error {
	svc, err := rt.service()
	if err != nil {
		return err
	}
	st, err := svc.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "patients: %d\nnotes:    %d\nflagged:  %d\n", st.Patients, st.Notes, st.Flagged)
	return nil
}

func check(cmd *cobra.Command, args []string) error {
	maxLength := rt.cfg.Notes.MaxLength
	current := checkText
	if checkFile != "" {
		doc, err := ingest.ParseFile(checkFile, maxLength)
		if err != nil {
			return err
		}
		current = doc.Text
	}
	current, err := ingest.CheckText(current, maxLength)
	if err != nil {
		return err
	}

	history := make([]string, 0, len(checkHistory))
	for _, path := range checkHistory {
		doc, err := ingest.ParseFile(path, maxLength)
		switch {
		case errors.Is(err, ingest.ErrEmpty):
			history = append(history, "")
		case err != nil:
			return fmt.Errorf("history %s: %w", path, err)
		default:
			history = append(history, doc.Text)
		}
	}
	if len(history) > rt.cfg.Anomaly.HistoryWindow {
		fmt.Fprintf(cmd.ErrOrStderr(), "using the first %d of %d history files\n", rt.cfg.Anomaly.HistoryWindow, len(history))
		history = history[:rt.cfg.Anomaly.HistoryWindow]
	}
	return printJSON(cmd, rt.detector.Explain(current, history))
}
