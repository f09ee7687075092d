// Package report produces the kiosk's periodic sales report.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
)

// SnapshotSource supplies the figures a report is built from.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// Format renders a snapshot as a plain-text sales report.
func Format(snap model.Snapshot, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sales report %s\n", at.Format("2006-01-02 15:04 MST"))

	products := make([]string, 0, len(snap.ProductCounts))
	total := 0
	for name, n := range snap.ProductCounts {
		products = append(products, name)
		total += n
	}
	sort.Strings(products)
	b.WriteString("Orders fulfilled:\n")
	if len(products) == 0 {
		b.WriteString("  none\n")
	}
	for _, name := range products {
		fmt.Fprintf(&b, "  %-24s %d\n", name, snap.ProductCounts[name])
	}
	fmt.Fprintf(&b, "Total orders: %d\n", total)
	fmt.Fprintf(&b, "Revenue: $%s\n", snap.Revenue.StringFixed(2))

	ingredients := make([]string, 0, len(snap.Inventory))
	for ing := range snap.Inventory {
		ingredients = append(ingredients, ing)
	}
	sort.Strings(ingredients)
	b.WriteString("Stock remaining:\n")
	for _, ing := range ingredients {
		fmt.Fprintf(&b, "  %-24s %s\n", ing, snap.Inventory[ing].String())
	}
	return b.String()
}

// Scheduler logs a sales report on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	src    SnapshotSource
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler for the given standard cron expression,
// evaluated in loc.
func NewScheduler(spec string, loc *time.Location, src SnapshotSource, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
		src:    src,
		logger: logger,
		now:    func() time.Time { return time.Now().In(loc) },
	}
}

// Start registers the report job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.Run); err != nil {
		return fmt.Errorf("schedule sales report %q: %w", s.spec, err)
	}
	s.logger.Info("report_scheduler_started", zap.String("cron", s.spec))
	s.cron.Start()
	return nil
}

// Stop stops the runner and waits for a running report to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("report_scheduler_stopped")
}

// Run builds and logs one report.
func (s *Scheduler) Run() {
	snap := s.src.Snapshot()
	fulfilled := 0
	for _, n := range snap.ProductCounts {
		fulfilled += n
	}
	s.logger.Info("sales_report",
		zap.Int("orders_fulfilled", fulfilled),
		zap.String("revenue", snap.Revenue.StringFixed(2)),
		zap.String("report", Format(snap, s.now())),
	)
}
