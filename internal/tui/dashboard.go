// Package tui renders the connection status, notifications and unread events
// in the terminal.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
)

const DefaultRefresh = time.Second

// Source is what the dashboard draws from and acts upon.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
	Reconnect(ctx context.Context) error
	ClearNotifications(ctx context.Context) error
	AckAll(ctx context.Context, evs []marshaller.EventView) error
}

type Dashboard struct {
	src     Source
	refresh time.Duration
	logger  *slog.Logger

	status *widgets.Paragraph
	notes  *widgets.List
	events *widgets.List
	help   *widgets.Paragraph
	grid   *ui.Grid

	last Snapshot
}

func NewDashboard(src Source, refresh time.Duration, logger *slog.Logger) *Dashboard {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Dashboard{src: src, refresh: refresh, logger: logger}
}

// Run owns the terminal until q or Ctrl-C, or until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("termui init: %w", err)
	}
	defer ui.Close()

	d.build()
	d.tick(ctx)

	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()
	uiEvents := ui.PollEvents()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.tick(ctx)
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "r":
				d.act(ctx, "RECONNECT", d.src.Reconnect)
			case "c":
				d.act(ctx, "CLEAR_NOTIFICATIONS", d.src.ClearNotifications)
			case "a":
				evs := d.last.Events
				d.act(ctx, "ACK_EVENTS", func(ctx context.Context) error { return d.src.AckAll(ctx, evs) })
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				ui.Render(d.grid)
			}
		}
	}
}

func (d *Dashboard) build() {
	d.status = widgets.NewParagraph()
	d.status.Title = " Connection "

	d.notes = widgets.NewList()
	d.notes.Title = " Notifications "
	d.notes.WrapText = false

	d.events = widgets.NewList()
	d.events.Title = " Unread events "
	d.events.WrapText = false

	d.help = widgets.NewParagraph()
	d.help.Text = "[q](fg:yellow) quit  [r](fg:yellow) reconnect  [c](fg:yellow) clear notifications  [a](fg:yellow) mark events read"
	d.help.Border = false

	d.grid = ui.NewGrid()
	w, h := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, w, h)
	d.grid.Set(
		ui.NewRow(0.2, ui.NewCol(1.0, d.status)),
		ui.NewRow(0.75,
			ui.NewCol(0.5, d.notes),
			ui.NewCol(0.5, d.events),
		),
		ui.NewRow(0.05, ui.NewCol(1.0, d.help)),
	)
}

func (d *Dashboard) act(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		d.logger.Warn("DASHBOARD_ACTION_FAILED", "action", name, "err", err)
	}
	d.tick(ctx)
}

func (d *Dashboard) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.refresh)
	defer cancel()

	snap, err := d.src.Fetch(ctx)
	if err != nil {
		d.status.Text = fmt.Sprintf("[%s](fg:red)", err.Error())
		d.status.BorderStyle.Fg = ui.ColorRed
		ui.Render(d.grid)
		return
	}
	d.last = snap

	d.status.Text = StatusText(snap)
	d.status.BorderStyle.Fg = colorFor(snap.Status.View.Color)
	d.notes.Rows = NotificationRows(snap.Notifications, time.Now())
	d.events.Rows = EventRows(snap.Events)
	ui.Render(d.grid)
}

// StatusText is the connection panel body.
func StatusText(s Snapshot) string {
	text := fmt.Sprintf("[%s](fg:%s)\n%s\nattempts: %d",
		s.Status.View.Label, termColor(s.Status.View.Color), s.Status.URL, s.Status.Attempts)
	if s.Status.Error != "" {
		text += fmt.Sprintf("\n[%s](fg:red)", s.Status.Error)
	}
	return text
}

// NotificationRows renders newest first with the age of each entry.
func NotificationRows(ns []model.Notification, now time.Time) []string {
	rows := make([]string, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, fmt.Sprintf("[%s](fg:%s) %s (%s ago)",
			n.Title, severityColor(n.Severity), n.Message, n.Age(now).Truncate(time.Second)))
	}
	return rows
}

func EventRows(evs []marshaller.EventView) []string {
	rows := make([]string, 0, len(evs))
	for _, ev := range evs {
		label := ev.Event
		if label == "" {
			label = ev.Kind
		}
		detail := ev.Message
		if ev.User != nil {
			detail = ev.User.Username
		}
		if ev.Text != "" {
			detail = ev.Text
		}
		rows = append(rows, fmt.Sprintf("#%d %s %s", ev.ID, label, detail))
	}
	return rows
}

func severityColor(s model.Severity) string {
	switch s {
	case model.SeveritySuccess:
		return "green"
	case model.SeverityError:
		return "red"
	default:
		return "cyan"
	}
}

// termColor maps status view colors onto the terminal palette; termui has no orange.
func termColor(c string) string {
	switch c {
	case "green", "red":
		return c
	case "orange":
		return "yellow"
	default:
		return "white"
	}
}

func colorFor(c string) ui.Color {
	switch termColor(c) {
	case "green":
		return ui.ColorGreen
	case "red":
		return ui.ColorRed
	case "yellow":
		return ui.ColorYellow
	default:
		return ui.ColorWhite
	}
}
