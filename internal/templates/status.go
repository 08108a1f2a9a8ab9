package templates

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/a-h/templ"

	"github.com/mic-havock/ridb-backend/internal/service"
)

// StatusData is what the ops status page shows
type StatusData struct {
	Running   bool
	Interval  time.Duration
	LastCycle *service.CycleStats
	Metrics   map[string]string
}

// metricLabels names the stored metrics shown on the page
var metricLabels = map[string]string{
	"total_watches":      "Total watches",
	"active_watches":     "Active watches",
	"notifications_sent": "Notifications sent",
	"attempts_made":      "Availability checks",
	"busiest_facility":   "Busiest facility",
}

// Status renders the monitor status page
func Status(data StatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`)
		p.raw(`<title>Campsite Monitor</title></head>`)
		p.raw(`<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 720px; margin: 0 auto; padding: 20px; color: #333;">`)
		p.raw(`<h1 style="color: #2c7744;">Campsite Availability Monitor</h1>`)

		state := "Idle"
		if data.Running {
			state = "Cycle running"
		}
		p.raw(`<p>Status: <strong>`)
		p.text(state)
		p.raw(`</strong> &middot; checking every `)
		p.text(data.Interval.String())
		p.raw(`</p>`)

		p.raw(`<h2>Last cycle</h2>`)
		if data.LastCycle == nil {
			p.raw(`<p>No cycle has completed yet.</p>`)
		} else {
			s := data.LastCycle
			p.raw(`<table>`)
			p.row("Cycle", s.ID)
			p.row("Finished", s.FinishedAt.Format(time.RFC1123))
			p.row("Duration", s.Duration().Round(time.Millisecond).String())
			p.row("Watches loaded", fmt.Sprint(s.Loaded))
			p.row("Suppressed", fmt.Sprint(s.Suppressed))
			p.row("Expired", fmt.Sprint(s.Expired))
			p.row("Groups", fmt.Sprintf("%d (%d bulk fetches)", s.Groups, s.BulkFetches))
			p.row("Singletons", fmt.Sprint(s.Singletons))
			p.row("Reservable", fmt.Sprint(s.Reservable))
			p.row("Notified", fmt.Sprint(s.Notified))
			p.row("Failed checks", fmt.Sprint(s.Failed))
			p.raw(`</table>`)
		}

		if len(data.Metrics) > 0 {
			p.raw(`<h2>Totals</h2><table>`)
			keys := make([]string, 0, len(metricLabels))
			for k := range metricLabels {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if v, ok := data.Metrics[k]; ok {
					p.row(metricLabels[k], v)
				}
			}
			p.raw(`</table>`)
		}

		p.raw(`</body></html>`)
		return p.err
	})
}

// printer writes HTML and keeps the first write error
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) row(label, value string) {
	p.raw(`<tr><th style="text-align: left; padding-right: 16px;">`)
	p.text(label)
	p.raw(`</th><td>`)
	p.text(value)
	p.raw(`</td></tr>`)
}
