package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/builder"
)

var collectUsage = map[builder.Mode]struct {
	use, short string
}{
	builder.ModeGiant: {
		use:   "giant <country> [limit]",
		short: "Collect top free and paid apps of every category for one country",
	},
	builder.ModeSupplement: {
		use:   "supplement <country> [limit]",
		short: "Collect top free apps of games and popular general categories for one country",
	},
	builder.ModeBuiltin: {
		use:   "builtin [limit]",
		short: "Collect fixed top charts across the built-in country list",
	},
}

// newCollectCmd creates the collection subcommand for mode.
func newCollectCmd(mode builder.Mode) *cobra.Command {
	usage := collectUsage[mode]
	var params builder.Params
	return &cobra.Command{
		Use:   usage.use,
		Short: usage.short,
		Args: func(_ *cobra.Command, args []string) error {
			parsed, err := parseCollectArgs(mode, args)
			if err != nil {
				return err
			}
			params = parsed
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			records, err := appInstance.Collector().Build(cmd.Context(), mode, params)
			if err != nil {
				return fmt.Errorf("collect %s: %w", mode, err)
			}
			name := builder.OutputName(mode, params.Country)
			written, err := appInstance.Catalogs().Save(cmd.Context(), name, records)
			if err != nil {
				return fmt.Errorf("save catalog: %w", err)
			}
			appInstance.Logger().Info("collection command finished",
				zap.String("mode", string(mode)),
				zap.String("file", written.Path),
				zap.Int("records", written.Records),
			)
			return nil
		},
	}
}

// parseCollectArgs validates positional arguments without touching the network.
func parseCollectArgs(mode builder.Mode, args []string) (builder.Params, error) {
	var params builder.Params
	rest := args
	if mode != builder.ModeBuiltin {
		if len(args) < 1 {
			return params, fmt.Errorf("%s requires a country code", mode)
		}
		params.Country = args[0]
		rest = args[1:]
	}
	if len(rest) > 1 {
		return params, fmt.Errorf("too many arguments for %s", mode)
	}
	if len(rest) == 1 {
		limit, err := parseLimit(rest[0])
		if err != nil {
			return params, err
		}
		params.Limit = limit
	}
	if _, err := builder.Plan(mode, params); err != nil {
		return params, err
	}
	return params, nil
}

func parseLimit(raw string) (int, error) {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer, got %q", raw)
	}
	return limit, nil
}
