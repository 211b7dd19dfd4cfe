package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notewatch/internal/casenotes"
	"notewatch/internal/ingest"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Add and inspect case notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a note; it is checked against the patient's recent notes",
	Example: `  notewatch note add --patient 1 --title "Session 4" --text "Mood stable..."
  notewatch note add --patient 1 --file session4.docx`,
	RunE: addNote,
}

var noteScoreCmd = &cobra.Command{
	Use:   "score [note-id]",
	Short: "Run anomaly detection for a stored note",
	Args:  cobra.ExactArgs(1),
	RunE:  scoreNote,
}

var noteExplainCmd = &cobra.Command{
	Use:   "explain [note-id]",
	Short: "Print the metrics and reasons behind a note's score as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  explainNote,
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a patient's notes with their flag and score",
	RunE:  listNotes,
}

var (
	listPatient int64

	notePatient int64
	noteTitle   string
	noteType    string
	noteText    string
	noteFile    string
)

func init() {
	noteAddCmd.Flags().Int64Var(&notePatient, "patient", 0, "Patient id (required)")
	noteAddCmd.Flags().StringVar(&noteTitle, "title", "", "Note title")
	noteAddCmd.Flags().StringVar(&noteType, "type", "Progress", "Note type")
	noteAddCmd.Flags().StringVar(&noteText, "text", "", "Note body")
	noteAddCmd.Flags().StringVar(&noteFile, "file", "", "Read the note body from a .txt, .md, .docx or .pdf file")
	_ = noteAddCmd.MarkFlagRequired("patient")
	noteAddCmd.MarkFlagsMutuallyExclusive("text", "file")
	noteAddCmd.MarkFlagsOneRequired("text", "file")

	noteListCmd.Flags().Int64Var(&listPatient, "patient", 0, "Patient id (required)")
	_ = noteListCmd.MarkFlagRequired("patient")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteScoreCmd)
	noteCmd.AddCommand(noteExplainCmd)
}

func addNote(cmd *cobra.Command, args []string) error {
	svc, err := rt.service()
	if err != nil {
		return err
	}
	body, title := noteText, noteTitle
	if noteFile != "" {
		doc, err := ingest.ParseFile(noteFile, rt.cfg.Notes.MaxLength)
		if err != nil {
			return err
		}
		body = doc.Text
		if title == "" {
			title = doc.Title
		}
	}

	n, err := svc.AddNote(cmd.Context(), casenotes.NewNote{
		PatientID: notePatient,
		NoteType:  noteType,
		Title:     title,
		Content:   body,
	})
	if err != nil {
		return err
	}
	svc.Wait()

	stored, err := rt.store.GetNote(cmd.Context(), n.ID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "note %d saved for patient %d\n", stored.ID, stored.PatientID)
	switch {
	case stored.AnomalyScore == nil:
		fmt.Fprintln(out, "not scored: fewer than 2 earlier notes")
	case stored.IsFlagged:
		fmt.Fprintf(out, "FLAGGED: anomaly score %.3f\n", *stored.AnomalyScore)
	default:
		fmt.Fprintf(out, "clear: anomaly score %.3f\n", *stored.AnomalyScore)
	}
	return nil
}

func listNotes(cmd *cobra.Command, args []string) error {
	svc, err := rt.service()
	if err != nil {
		return err
	}
	notes, err := svc.ListNotes(cmd.Context(), listPatient)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no notes for patient %d\n", listPatient)
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NOTE\tCREATED\tTYPE\tFLAGGED\tSCORE\tTITLE")
	for _, n := range notes {
		flag := "no"
		if n.IsFlagged {
			flag = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.NoteType, flag, formatScore(n), n.Title)
	}
	return tw.Flush()
}

func scoreNote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	svc, err := rt.service()
	if err != nil {
		return err
	}
	res, err := svc.ScoreNote(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func explainNote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	svc, err := rt.service()
	if err != nil {
		return err
	}
	exp, err := svc.ExplainNote(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd, exp)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("note id must be a positive integer")
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
