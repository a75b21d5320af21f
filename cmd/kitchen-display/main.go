// The kitchen-display binary renders the live order queue in a terminal: a
// full reload on start, push events from the kitchen room, and a periodic
// reload to reconcile anything missed while disconnected.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dinehub/order-platform/internal/config"
	"github.com/dinehub/order-platform/internal/kitchen"
	"github.com/dinehub/order-platform/internal/order/domain"
	"github.com/dinehub/order-platform/pkg/logging"
	"github.com/dinehub/order-platform/pkg/shutdown"
)

func main() {
	cfg := config.LoadDisplay()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	projector := kitchen.NewProjector(cfg.GraceWindow)
	defer projector.Close()
	projector.OnChange(func() { render(projector) })

	client := kitchen.NewClient(log, projector, cfg.ServerURL, cfg.WSURL, cfg.StaffToken, cfg.ReloadInterval)
	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("kitchen display stopped", "err", err)
		os.Exit(1)
	}
}

func render(p *kitchen.Projector) {
	active := p.Active()
	completed := p.Completed()

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ORDER\tTABLE\tCUSTOMER\tSTATUS\tITEMS\tTOTAL\n")
	for _, o := range active {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			o.OrderNumber, o.TableNumber, o.CustomerName, o.Status, itemSummary(o.Items), o.TotalAmount.StringFixed(2))
	}
	w.Flush()

	// Clear-screen redraw keeps the view stable on a wall display.
	fmt.Print("\033[2J\033[H")
	fmt.Printf("DineHub kitchen queue | %d active, %d completed\n\n", len(active), len(completed))
	fmt.Print(b.String())
}

func itemSummary(items []domain.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	return strings.Join(parts, ", ")
}
