package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/smoothie-kiosk/pkg/client"
)

// NewMenuCommand creates the menu command.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "menu",
		Short:         "List the smoothies on offer",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := client.New(rootOpts.Addr).Menu(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to fetch menu", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(products, func(w io.Writer) { writeMenu(w, products) })
		},
	}
}

func writeMenu(w io.Writer, products []client.Product) {
	for i, prod := range products {
		fmt.Fprintf(w, "%d. %-24s $%s\n", i+1, prod.Name, prod.Price.StringFixed(2))
		ings := make([]string, 0, len(prod.Recipe))
		for ing, q := range prod.Recipe {
			ings = append(ings, fmt.Sprintf("%s %s", q.String(), ing))
		}
		sort.Strings(ings)
		fmt.Fprintf(w, "   %s\n", strings.Join(ings, ", "))
	}
}
