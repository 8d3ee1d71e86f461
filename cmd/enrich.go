package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newEnrichCmd creates the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	var limit int
	return &cobra.Command{
		Use:   "enrich <dir> [limit]",
		Short: "Attach seller URLs and universal links to every catalog in a directory",
		Long: `Reads every catalog file directly inside <dir> (relative to output.root),
looks up each unique app once, and writes a *_enriched.json sibling for every
input file. A positive limit caps the number of apps looked up; the rest are
written with an empty result.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("enrich takes <dir> [limit], got %d arguments", len(args))
			}
			if err := parseEnrichDir(args[0]); err != nil {
				return err
			}
			limit = 0
			if len(args) == 2 {
				parsed, err := parseLimit(args[1])
				if err != nil {
					return err
				}
				limit = parsed
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Enricher().Run(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("enrich %s: %w", args[0], err)
			}
			appInstance.Logger().Info("enrich command finished",
				zap.String("run_id", summary.RunID),
				zap.Int("files_written", summary.FilesWritten),
				zap.Int("looked_up", summary.LookedUp),
			)
			return nil
		},
	}
}

// parseEnrichDir accepts only directories inside output.root.
func parseEnrichDir(dir string) error {
	if !filepath.IsLocal(dir) {
		return fmt.Errorf("dir %q must be a relative path inside output.root", dir)
	}
	return nil
}
