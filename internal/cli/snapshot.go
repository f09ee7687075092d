package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/smoothie-kiosk/pkg/client"
)

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "snapshot",
		Short:         "Show stock, revenue and orders per product",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := client.New(rootOpts.Addr).Snapshot(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to fetch snapshot", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(snap, func(w io.Writer) { writeSnapshot(w, snap) })
		},
	}
}

func writeSnapshot(w io.Writer, snap *client.Snapshot) {
	fmt.Fprintf(w, "Revenue: $%s\n", snap.Revenue.StringFixed(2))

	products := make([]string, 0, len(snap.ProductCounts))
	for name := range snap.ProductCounts {
		products = append(products, name)
	}
	sort.Strings(products)
	fmt.Fprintln(w, "Orders:")
	for _, name := range products {
		fmt.Fprintf(w, "  %-24s %d\n", name, snap.ProductCounts[name])
	}

	ings := make([]string, 0, len(snap.Inventory))
	for ing := range snap.Inventory {
		ings = append(ings, ing)
	}
	sort.Strings(ings)
	fmt.Fprintln(w, "Stock:")
	for _, ing := range ings {
		fmt.Fprintf(w, "  %-24s %s\n", ing, snap.Inventory[ing].String())
	}
}
