package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// LedgerEnv names the environment variable holding the run ledger path.
const LedgerEnv = "SCENETILER_LEDGER"

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scenetiler",
		Short: "Satellite scene tiling and manifest builder",
		Long: `Scenetiler cuts a multi-band satellite scene into image tiles for
crowd annotation, rejects tiles that are pure land or too cloudy, and writes a
manifest pairing each kept tile with its geographic location and scene metadata.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}
