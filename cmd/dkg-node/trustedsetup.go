package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skde-project/dkg-node/node"
	"github.com/skde-project/dkg-node/pkg/signing"
)

var (
	trustedSetupDataDir   string
	trustedSetupBits      int
	trustedSetupTime      uint32
	trustedSetupMaxSeq    uint64
)

var trustedSetupCmd = &cobra.Command{
	Use:   "trusted-setup",
	Short: "Generate and sign cryptographic trusted setups",
}

var trustedSetupSkdeCmd = &cobra.Command{
	Use:   "skde",
	Short: "Generate and sign the SKDE trusted setup",
	Long: `Generate a fresh SKDE trusted setup (modulus, generator, commitment
base, time-lock depth) and sign it with the authority's signing key,
writing trusted_setup.json into the data directory.

The authority's signing key is loaded from <data-dir>/signing_key,
generated on first use if absent.`,
	Example: `  dkg-node trusted-setup skde --path ./data --generator 2048 --time 21 --max-sequencer 100`,
	RunE:    runTrustedSetupSkde,
}

func init() {
	rootCmd.AddCommand(trustedSetupCmd)
	trustedSetupCmd.AddCommand(trustedSetupSkdeCmd)

	trustedSetupSkdeCmd.Flags().StringVar(&trustedSetupDataDir, "path", "./data", "Data directory holding the signing key and trusted_setup.json")
	trustedSetupSkdeCmd.Flags().IntVar(&trustedSetupBits, "generator", 2048, "Modulus bit length")
	trustedSetupSkdeCmd.Flags().Uint32Var(&trustedSetupTime, "time", 21, "Time-lock squaring depth T")
	trustedSetupSkdeCmd.Flags().Uint64Var(&trustedSetupMaxSeq, "max-sequencer", 100, "Maximum number of sequencers the parameters support")
}

func runTrustedSetupSkde(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(trustedSetupDataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	keyPath := filepath.Join(trustedSetupDataDir, "signing_key")
	kp, err := loadOrCreateAuthorityKey(keyPath)
	if err != nil {
		return err
	}

	signed, err := node.GenerateAndSignTrustedSetup(kp, trustedSetupBits, trustedSetupTime, trustedSetupMaxSeq)
	if err != nil {
		return fmt.Errorf("generate trusted setup: %w", err)
	}

	raw, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trusted setup: %w", err)
	}

	outPath := filepath.Join(trustedSetupDataDir, "trusted_setup.json")
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return fmt.Errorf("write trusted setup: %w", err)
	}

	fmt.Printf("Trusted setup written to %s\n", outPath)
	fmt.Printf("  Signer address: %s\n", kp.Address())
	fmt.Printf("  Modulus bits:   %d\n", trustedSetupBits)
	fmt.Printf("  Time-lock T:    %d\n", trustedSetupTime)
	fmt.Printf("  Max sequencer:  %d\n", trustedSetupMaxSeq)
	return nil
}

func loadOrCreateAuthorityKey(path string) (*signing.KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return signing.KeyPairFromHex(string(raw))
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	kp, err := signing.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	if err := os.WriteFile(path, []byte(kp.ExportHex()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return kp, nil
}
