package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"calman.com/worklog/core"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(ac("250", "238"))
	doneStyle   = cellStyle.Foreground(ac("245", "241")).Strikethrough(true)

	urgencyStyles = map[core.Urgency]lipgloss.Style{
		core.UrgencyDanger:  cellStyle.Foreground(ac("160", "203")).Bold(true),
		core.UrgencyWarning: cellStyle.Foreground(ac("166", "208")),
		core.UrgencyCaution: cellStyle.Foreground(ac("136", "221")),
		core.UrgencyPassed:  cellStyle.Foreground(ac("240", "243")),
	}

	noticeStyles = map[core.Level]lipgloss.Style{
		core.LevelInfo:    lipgloss.NewStyle().Foreground(ac("25", "75")),
		core.LevelSuccess: lipgloss.NewStyle().Foreground(ac("28", "78")),
		core.LevelWarning: lipgloss.NewStyle().Foreground(ac("166", "208")),
		core.LevelError:   lipgloss.NewStyle().Foreground(ac("160", "203")).Bold(true),
	}
)

var columns = []string{"ID", "Work time", "Car model", "Color", "Code", "Name", "Qty", "Done", "Due"}

const dueColumn = 1

// renderTable draws records in the given order. The work time cell is coloured
// by urgency relative to now and completed rows are struck through.
func renderTable(records []model.WorkLog, now time.Time) string {
	urgency := make([]core.Urgency, len(records))
	rows := make([][]string, len(records))
	for i, r := range records {
		urgency[i] = core.ClassifyUrgency(r, now)
		done := ""
		if r.Completed() {
			done = utils.ISOToDisplay(*r.CompletedAt)
		}
		rows[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.WorkDatetime,
			r.CarModel,
			r.ProductColor,
			r.ProductCode,
			r.ProductName,
			strconv.Itoa(r.Quantity),
			done,
			urgencyLabel(r, urgency[i]),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(records) {
				return cellStyle
			}
			if records[row].Completed() {
				return doneStyle
			}
			if col == dueColumn || col == len(columns)-1 {
				if st, ok := urgencyStyles[urgency[row]]; ok {
					return st
				}
			}
			return cellStyle
		})
	return t.String()
}

func urgencyLabel(r model.WorkLog, u core.Urgency) string {
	if r.Completed() || u == core.UrgencyNormal || u == core.UrgencyUnknown {
		return ""
	}
	return u.String()
}

// tableProjector redraws the whole view every time the store changes.
type tableProjector struct {
	mu      sync.Mutex
	w       io.Writer
	current func() core.QueryContext
	now     func() time.Time
}

func newTableProjector(w io.Writer, current func() core.QueryContext) *tableProjector {
	return &tableProjector{w: w, current: current, now: time.Now}
}

func (p *tableProjector) Render(records []model.WorkLog) {
	view := core.Project(records, p.current())
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, renderTable(view, p.now()))
	fmt.Fprintf(p.w, "%d work logs\n", len(view))
}

// noticePrinter writes notices as single coloured lines.
type noticePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func newNoticePrinter(w io.Writer) *noticePrinter {
	return &noticePrinter{w: w}
}

func (p *noticePrinter) Notify(n core.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, noticeStyles[n.Level].Render(fmt.Sprintf("[%s] %s", n.Level, n.Message)))
}
