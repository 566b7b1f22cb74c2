// Package notify pushes detected opportunities to chat platforms. Delivery
// is best-effort: a failed send is logged and never blocks the analysis
// pipeline.
package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/bagula/platform/internal/models"
	"github.com/bagula/platform/internal/opportunity"
	"gorm.io/gorm"
)

// Event is one notification formatted for display in chat.
type Event struct {
	Title    string
	Body     string
	Severity string
	Color    string // sidebar/embed color hint (e.g. "#e01e5a")
	Fields   []Field
}

// Field is a key-value pair displayed alongside the event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier is a platform-specific outbound channel.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// severityColors follow traffic-light conventions.
var severityColors = map[string]string{
	models.SeverityLow:    "#2eb67d",
	models.SeverityMedium: "#ecb22e",
	models.SeverityHigh:   "#e01e5a",
}

// FromOpportunity formats an opportunity as a chat event.
func FromOpportunity(op models.Opportunity) Event {
	ev := Event{
		Title:    fmt.Sprintf("[%s] %s", op.Severity, op.Title),
		Body:     op.Description,
		Severity: op.Severity,
		Color:    severityColors[op.Severity],
		Fields: []Field{
			{Name: "Agent", Value: op.AgentName, Short: true},
			{Name: "Type", Value: op.Type, Short: true},
			{Name: "Session", Value: op.SessionID, Short: true},
		},
	}
	if op.SuggestedAction != "" {
		ev.Fields = append(ev.Fields, Field{Name: "Suggested action", Value: op.SuggestedAction})
	}
	if op.EstimatedSavingsUSD != nil {
		ev.Fields = append(ev.Fields, Field{Name: "Est. savings", Value: fmt.Sprintf("$%.2f", *op.EstimatedSavingsUSD), Short: true})
	}
	if op.EstimatedLatencySavingMS != nil {
		ev.Fields = append(ev.Fields, Field{Name: "Est. latency saving", Value: fmt.Sprintf("%dms", *op.EstimatedLatencySavingMS), Short: true})
	}
	return ev
}

// Fanout sends each event to every configured notifier. Failures are
// logged per notifier and never propagated.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout wraps zero or more notifiers. A Fanout with none is a no-op.
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

// Send delivers the event to every notifier, best-effort.
func (f *Fanout) Send(ctx context.Context, ev Event) {
	for _, n := range f.notifiers {
		if err := n.Send(ctx, ev); err != nil {
			log.Printf("notify: send %q: %v", ev.Title, err)
		}
	}
}

// Close shuts down every notifier, returning the first error seen.
func (f *Fanout) Close() error {
	var first error
	for _, n := range f.notifiers {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DailyDigest summarizes the opportunities detected since the cutoff as a
// single event. Returns ok=false when there is nothing to report.
func DailyDigest(db *gorm.DB, since time.Time) (Event, bool, error) {
	var ops []models.Opportunity
	if err := db.Where("detected_at >= ?", since).Order("detected_at ASC").Find(&ops).Error; err != nil {
		return Event{}, false, fmt.Errorf("notify: load digest window: %w", err)
	}
	if len(ops) == 0 {
		return Event{}, false, nil
	}

	s := opportunity.Summarize(ops)

	body := fmt.Sprintf("%d opportunities detected (%d unresolved).", s.Total, s.Unresolved)
	if s.EstimatedSavingsUSD > 0 {
		body += fmt.Sprintf(" Estimated savings: $%.2f.", s.EstimatedSavingsUSD)
	}
	if s.EstimatedLatencySavingMS > 0 {
		body += fmt.Sprintf(" Estimated latency reduction: %dms.", s.EstimatedLatencySavingMS)
	}

	ev := Event{
		Title:    "Daily opportunity digest",
		Body:     body,
		Severity: models.SeverityLow,
		Color:    severityColors[models.SeverityLow],
	}
	for _, name := range sortedKeys(s.ByType) {
		ev.Fields = append(ev.Fields, Field{Name: name, Value: fmt.Sprintf("%d", s.ByType[name]), Short: true})
	}
	return ev, true, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
