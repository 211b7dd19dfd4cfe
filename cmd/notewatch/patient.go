package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notewatch/internal/db"
)

var patientCmd = &cobra.Command{
	Use:   "patient",
	Short: "Manage patients",
}

var patientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a patient",
	RunE:  addPatient,
}

var patientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patients",
	RunE:  listPatients,
}

var patientFirst, patientLast, patientMRN string

func init() {
	patientAddCmd.Flags().StringVar(&patientFirst, "first", "", "First name (required)")
	patientAddCmd.Flags().StringVar(&patientLast, "last", "", "Last name (required)")
	patientAddCmd.Flags().StringVar(&patientMRN, "mrn", "", "Medical record number (required)")
	_ = patientAddCmd.MarkFlagRequired("first")
	_ = patientAddCmd.MarkFlagRequired("last")
	_ = patientAddCmd.MarkFlagRequired("mrn")

	patientCmd.AddCommand(patientAddCmd)
	patientCmd.AddCommand(patientListCmd)
}

func addPatient(cmd *cobra.Command, args []string) error {
	if _, err := rt.service(); err != nil {
		return err
	}
	p, err := rt.store.CreatePatient(cmd.Context(), db.Patient{
		FirstName: patientFirst,
		LastName:  patientLast,
		MRN:       patientMRN,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "patient %d: %s %s (%s)\n", p.ID, p.FirstName, p.LastName, p.MRN)
	return nil
}

func listPatients(cmd *cobra.Command, args []string) error {
	svc, err := rt.service()
	if err != nil {
		return err
	}
	patients, err := svc.ListPatients(cmd.Context())
	if err != nil {
		return err
	}
	if len(patients) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no patients")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMRN\tSTATUS")
	for _, p := range patients {
		fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\n", p.ID, p.FirstName, p.LastName, p.MRN, p.Status)
	}
	return tw.Flush()
}
