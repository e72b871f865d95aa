package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dkg-node",
	Short: "Distributed key generation node for Single-Key Delay Encryption",
	Long: `dkg-node runs one participant of the SKDE distributed key generation
protocol: a session clock driving round-robin leader election, partial-key
generation and aggregation, and a time-lock puzzle solve, all serialized
through an append-only commitment store.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Commands are registered in their respective files:
	// - start.go: node start
	// - trustedsetup.go: trusted-setup skde
}
