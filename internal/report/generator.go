package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"distributionScope/internal/decode"
	"distributionScope/internal/model"
)

// Reader is the read-only slice of the event store the reporter consumes.
type Reader interface {
	EventsSince(ctx context.Context, eventName string, cutoff time.Time) ([]model.EventRecord, error)
}

// Generator renders the periodic aggregate report for an event type.
type Generator struct {
	store Reader
	now   func() time.Time
}

func NewGenerator(store Reader) *Generator {
	return &Generator{store: store, now: time.Now}
}

var printer = message.NewPrinter(language.English)

// Generate builds the report text for events within the spec's window: time
// since first and last event, summed payload fields, and the most recent
// distributor snapshot.
func (g *Generator) Generate(ctx context.Context, spec decode.EventSpec) (string, error) {
	now := g.now().UTC()
	cutoff := now.Add(-spec.ReportWindow)

	events, err := g.store.EventsSince(ctx, spec.Name, cutoff)
	if err != nil {
		return "", fmt.Errorf("query %s events: %w", spec.Name, err)
	}
	if len(events) == 0 {
		return fmt.Sprintf("No %s events found in the last %s.", spec.Name, formatWindow(spec.ReportWindow)), nil
	}

	sums := make(map[string]float64, len(spec.Fields))
	first := events[0].Timestamp
	last := events[0].Timestamp
	for _, event := range events {
		for _, field := range spec.Fields {
			sums[field] += numericField(event, field)
		}
		if event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if event.Timestamp.After(last) {
			last = event.Timestamp
		}
	}

	latest := events[len(events)-1]
	wallet, _ := latest.Data["distributor_wallet"].(string)
	balance := numericField(latest, "distributor_balance")

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", spec.ReportTitle)
	fmt.Fprintf(&b, "- First TX: %s\n", formatAge(now.Sub(first)))
	fmt.Fprintf(&b, "- Last TX: %s\n", formatAge(now.Sub(last)))
	for _, field := range spec.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", spec.FieldLabel(field), printer.Sprintf("%.2f", sums[field]))
	}
	fmt.Fprintf(&b, "\nDistributor wallet: %s\n", wallet)
	fmt.Fprintf(&b, "Distributor balance: %.2f ETH", balance)

	return b.String(), nil
}

func numericField(event model.EventRecord, field string) float64 {
	value, _ := event.Data[field].(float64)
	return value
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm ago", hours, minutes)
}

func formatWindow(d time.Duration) string {
	if hours := int(d.Hours()); hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
