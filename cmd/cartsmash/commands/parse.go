package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartsmash/resolver/internal/domain"
	"github.com/cartsmash/resolver/internal/usecase"
)

func newParseCmd() *cobra.Command {
	var (
		quantity string
		unit     string
		brand    string
	)

	cmd := &cobra.Command{
		Use:   "parse <line>",
		Short: "Parse a shopping list line without calling the catalog",
		Example: `  cartsmash parse "2 lbs chicken breast"
  cartsmash parse bananas --quantity 6 --unit each`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := domain.RawItem{
				Name:     strings.Join(args, " "),
				Quantity: domain.ParseQuantity(quantity),
				Unit:     unit,
				Brand:    brand,
			}
			return printJSON(cmd.OutOrStdout(), usecase.ParseItem(item))
		},
	}

	cmd.Flags().StringVar(&quantity, "quantity", "", "explicit quantity (number or fraction)")
	cmd.Flags().StringVar(&unit, "unit", "", "explicit unit, overrides any unit in the line")
	cmd.Flags().StringVar(&brand, "brand", "", "preferred brand")

	return cmd
}
