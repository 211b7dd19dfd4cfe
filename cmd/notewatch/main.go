package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose      bool
	configPath   string
	workspaceDir string
	metricsAddr  string

	rt *app
)

var rootCmd = &cobra.Command{
	Use:   "notewatch",
	Short: "Flag case notes that deviate from a patient's recent notes",
	Long: `notewatch stores clinical case notes and compares every new note with
the patient's preceding notes. Notes whose wording, length or vocabulary
diverge sharply are flagged for review.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		rt, err = newApp()
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/configs/notewatch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", "", "Workspace directory (default: ~/.notewatch)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(patientCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(rescoreCmd)
	rootCmd.AddCommand(flaggedCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statsCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the workspace and a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := rt.service(); err != nil {
			return err
		}
		rt.logger.Info("workspace ready", zap.String("root", rt.layout.Root))
		fmt.Fprintf(cmd.OutOrStdout(), "Workspace: %s\nConfig:    %s\nDatabase:  %s\n",
			rt.layout.Root, rt.configPath, rt.cfg.Database.Path)
		return nil
	},
}

// execute runs the command line and releases the store and metrics server
// whether or not the command succeeded.
func execute(ctx context.Context) error {
	defer func() {
		if rt != nil {
			rt.close()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
