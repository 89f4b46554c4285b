// Package commands implements attestctl's CLI surface: a thin
// operator-facing wrapper around the in-process Trusted Attestation
// Core, for exercising and inspecting it without a real TEE.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time via -ldflags.
	Version = "dev"
	Commit  = "none"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "attestctl",
	Short: "attestctl drives and inspects a Trusted Attestation Core",
	Long: `attestctl runs control-flow attestation sessions against an
in-process core the same way a real TEE client library would drive a
Trusted Application: open a session, stream shadow-stack and digest
events, pull the execution log, finalize the proof.

Use "attestctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/attestctl/attestctl.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// ConfigFile returns the --config flag value.
func ConfigFile() string {
	return cfgFile
}

// Exit prints an error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
