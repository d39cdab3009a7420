package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartsmash/resolver/config"
	"github.com/cartsmash/resolver/internal/app"
	"github.com/cartsmash/resolver/internal/domain"
	"github.com/cartsmash/resolver/internal/observability"
)

// buildApp is replaced in tests
var buildApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: "cartsmash-cli",
	})

	return app.Build(ctx, cfg, logger)
}

func newResolveCmd() *cobra.Command {
	var (
		file     string
		retailer string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a JSON array of shopping list items",
		Example: `  cartsmash resolve --file list.json --retailer kroger
  cat list.json | cartsmash resolve --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			batch, err := a.Resolver.ResolveCartSmashItems(ctx, items, retailer)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), batch)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of items, - for stdin (required)")
	cmd.Flags().StringVarP(&retailer, "retailer", "r", "", "retailer identifier")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall time limit")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readItems(stdin io.Reader, path string) ([]domain.RawItem, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	var items []domain.RawItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: items file must hold a JSON array: %v", domain.ErrInvalidRequest, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to resolve", domain.ErrInvalidRequest)
	}
	return items, nil
}
