package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/smoothie-kiosk/pkg/client"
)

// OrderOptions holds flags for the order command.
type OrderOptions struct {
	*RootOptions
	Wait time.Duration
}

type orderOutput struct {
	Ack    *client.Ack    `json:"ack"`
	Result *client.Result `json:"result,omitempty"`
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order <product>",
		Short: "Place an order",
		Long: `Place an order for one smoothie and optionally wait for it.

Example:
  smoothie-kiosk order "Mango Smoothie"
  smoothie-kiosk order strawberry\ smoothie --wait 5s`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "wait up to this long for the order to be prepared")

	return cmd
}

func runOrder(cmd *cobra.Command, opts *OrderOptions, product string) error {
	c := client.New(opts.Addr)
	ack, err := c.SubmitOrder(cmd.Context(), product)
	if err != nil {
		if client.IsCode(err, "unknown_product") {
			return WrapExitError(ExitFailure, "Sorry, that item is not on the menu.", err)
		}
		return WrapExitError(ExitCommandError, "failed to place order", err)
	}

	out := orderOutput{Ack: ack}
	if opts.Wait > 0 {
		res, err := c.Result(cmd.Context(), ack.Sequence, opts.Wait)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to fetch order result", err)
		}
		out.Result = res
	}

	p := printer{format: opts.Format, w: cmd.OutOrStdout()}
	if err := p.print(out, func(w io.Writer) { writeOrder(w, out) }); err != nil {
		return err
	}
	if out.Result != nil && !out.Result.Pending() && out.Result.Status != "fulfilled" {
		return NewExitError(ExitFailure, out.Result.Message)
	}
	return nil
}

func writeOrder(w io.Writer, out orderOutput) {
	fmt.Fprintf(w, "Order #%d placed for %s.\n", out.Ack.Sequence, out.Ack.ProductID)
	switch {
	case out.Result == nil:
	case out.Result.Pending():
		fmt.Fprintln(w, "Your smoothie is still being prepared.")
	default:
		fmt.Fprintln(w, out.Result.Message)
		if len(out.Result.Missing) > 0 {
			fmt.Fprintf(w, "Missing: %s\n", strings.Join(out.Result.Missing, ", "))
		}
	}
}
