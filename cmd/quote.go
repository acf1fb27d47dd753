package cmd

import (
	"fmt"
	"io"
	"time"

	"booking-engine/internal/services"
	"booking-engine/models"

	"github.com/spf13/cobra"
)

// newQuoteCommand prints a price breakdown from the loaded rate tables
// without starting the server.
func newQuoteCommand(pricing *services.PricingEngine) *cobra.Command {
	var (
		kind      string
		quantity  int
		eventDate string
	)

	command := &cobra.Command{
		Use:          "quote",
		Short:        "Prints the price breakdown for a booking",
		Example:      "  booking-engine quote --kind show --quantity 4 --event-date 2026-11-20",
		SilenceUsage: true,
		RunE: func(command *cobra.Command, args []string) error {
			k, err := models.ParseKind(kind)
			if err != nil {
				return err
			}
			var date time.Time
			if eventDate != "" {
				if date, err = time.Parse(time.DateOnly, eventDate); err != nil {
					return fmt.Errorf("event date must be YYYY-MM-DD: %w", err)
				}
			}

			quote, err := pricing.Quote(k, quantity, date)
			if err != nil {
				return err
			}
			printQuote(command.OutOrStdout(), quote)
			return nil
		},
	}

	command.Flags().StringVar(&kind, "kind", "", "booking kind (havan, show, stall, delegate)")
	command.Flags().IntVar(&quantity, "quantity", 1, "number of units")
	command.Flags().StringVar(&eventDate, "event-date", "", "event date, YYYY-MM-DD")
	_ = command.MarkFlagRequired("kind")

	return command
}

func printQuote(w io.Writer, q *models.Quote) {
	b := q.Breakdown
	fmt.Fprintf(w, "%s x %d\n", q.Kind, q.Quantity)
	fmt.Fprintf(w, "  base       %s\n", b.BaseAmount.StringFixed(2))
	fmt.Fprintf(w, "  discount   %s (%s %s%%)\n", b.DiscountAmount.StringFixed(2), b.Discount.Source, b.Discount.Percent.String())
	fmt.Fprintf(w, "  subtotal   %s\n", b.DiscountedAmount.StringFixed(2))
	fmt.Fprintf(w, "  tax        %s (%s%%)\n", b.TaxAmount.StringFixed(2), b.TaxRate.String())
	fmt.Fprintf(w, "  total      %s\n", b.Total.StringFixed(2))
	if m := q.NextMilestone; m != nil {
		fmt.Fprintf(w, "Add %d more to reach %s %d for %s%% off\n", m.QuantityNeeded, q.QuantityField, m.MinUnits, m.DiscountPercent.String())
	}
}
