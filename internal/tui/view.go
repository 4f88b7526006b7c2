package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/review"
	"stock-reconciler/internal/session"
)

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder
	s := a.session

	header := fmt.Sprintf("Stock reconciliation · %s · %s · %s", s.Unit().ID, s.Period(), s.Step())
	b.WriteString(a.styles.Title.Render(header))
	b.WriteString("\n\n")

	switch s.Step() {
	case session.StepFiles:
		b.WriteString(a.viewFiles())
	case session.StepVerify:
		b.WriteString(a.viewVerify())
	default:
		b.WriteString(a.viewResults())
	}

	b.WriteString("\n")
	if a.editing {
		b.WriteString(a.styles.Input.Render(a.input.View()))
		b.WriteString("\n")
	}
	if s.Pending() {
		b.WriteString(a.spinner.View() + " ")
	}
	style := a.styles.Success
	if a.failed {
		style = a.styles.Error
	}
	for _, n := range a.notices {
		b.WriteString(style.Render(n))
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Help.Render(helpLine(a.help())))
	return b.String()
}

func (a *App) help() []key.Binding {
	switch a.session.Step() {
	case session.StepFiles:
		return a.keys.FilesHelp()
	case session.StepVerify:
		return a.keys.VerifyHelp()
	default:
		return a.keys.ResultsHelp(a.session.ReviewState() == review.Reviewing)
	}
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

func (a *App) viewFiles() string {
	var b strings.Builder
	s := a.session

	stock := a.styles.Warning.Render("missing")
	if f, ok := s.Stock(); ok {
		stock = f.Filename
	}
	fmt.Fprintf(&b, "Stock: %s\n\n", stock)

	assignment := s.Assignment()
	for i, name := range s.Unit().WorkshopNames() {
		file := a.styles.Muted.Render("-")
		if f, ok := assignment.File(name); ok {
			file = f.Filename
		}
		if s.IsSkipped(name) {
			file += a.styles.Muted.Render(" (skipped)")
		}
		b.WriteString(a.line(i, fmt.Sprintf("%-22s %s", name, file)))
	}

	if len(assignment.Unmatched) > 0 {
		b.WriteString("\n" + a.styles.Subtitle.Render("Unmatched files") + "\n")
		for _, f := range assignment.Unmatched {
			b.WriteString("  " + a.styles.Warning.Render(f.Filename) + "\n")
		}
	}
	return b.String()
}

func (a *App) viewVerify() string {
	adj, err := a.session.Adjudicator()
	if err != nil {
		return a.styles.Error.Render(err.Error()) + "\n"
	}
	var b strings.Builder
	fields := []string{"sheet", "ref", "qty"}
	for i, rec := range adj.Records() {
		status := a.styles.Success.Render("ok")
		if !rec.Valid {
			status = a.styles.Warning.Render("check")
		}
		cur, _ := adj.Current(rec.Workshop)
		values := []string{cur.SheetName, cur.RefCol, cur.QtyCol}
		cells := make([]string, len(values))
		for f, v := range values {
			if v == "" {
				v = "auto"
			}
			cell := fields[f] + "=" + v
			if i == a.cursor && f == a.field {
				cell = a.styles.Selected.Render(cell)
			}
			cells[f] = cell
		}
		b.WriteString(a.line(i, fmt.Sprintf("%-22s %-6s %s", rec.Workshop, status, strings.Join(cells, "  "))))
		if i == a.cursor {
			for _, e := range rec.Errors {
				b.WriteString("    " + a.styles.Muted.Render(e) + "\n")
			}
		}
	}
	return b.String()
}

func (a *App) viewResults() string {
	var b strings.Builder
	s := a.session

	sum := s.Summary()
	fmt.Fprintf(&b, "%d workshops · %d matches · %d discrepancies", sum.TotalWorkshops, sum.TotalMatches, sum.TotalDiscrepancies)
	if sum.FailedWorkshops > 0 {
		b.WriteString(a.styles.Error.Render(fmt.Sprintf(" · %d failed", sum.FailedWorkshops)))
	}
	if staged := s.Staged(); len(staged) > 0 {
		fmt.Fprintf(&b, " · report: %s", strings.Join(staged, ", "))
	}
	b.WriteString("\n")

	tabs := make([]string, 0)
	res := s.Result()
	for _, name := range res.Names() {
		w, _ := res.Get(name)
		label := name
		if w != nil {
			label = w.Label(name)
		}
		if name == s.ActiveWorkshop() {
			label = a.styles.Selected.Render(label)
		}
		tabs = append(tabs, label)
	}
	b.WriteString(strings.Join(tabs, " | ") + "\n")
	b.WriteString(a.styles.Subtitle.Render(s.View().String()) + "\n\n")

	if w, ok := res.Get(s.ActiveWorkshop()); ok && w != nil && w.Failed() {
		return b.String() + a.styles.Error.Render(w.Err) + "\n"
	}

	rows, err := s.Rows()
	if err != nil {
		return b.String() + a.styles.Error.Render(err.Error()) + "\n"
	}
	if len(rows) == 0 {
		return b.String() + a.styles.Muted.Render("no rows") + "\n"
	}

	reviewing := s.ReviewState() == review.Reviewing
	paired := make(map[string]bool)
	for _, p := range s.Pairs() {
		for _, ref := range p.Refs() {
			paired[ref] = true
		}
	}

	fmt.Fprintf(&b, "    %-18s %10s %12s %10s\n", "Ref", "Stock_Qty", "Calc_Mov_Qty", "Difference")
	for i, r := range rows {
		mark := "   "
		if reviewing && paired[r.NormalizedRef()] {
			mark = "[ ]"
			if s.Selected(r.Ref) {
				mark = "[x]"
			}
		}
		b.WriteString(a.line(i, fmt.Sprintf("%s %-18s %10s %12s %s", mark, r.Ref,
			r.StockQty.StringFixed(2), r.CalcMovQty.StringFixed(2), a.difference(r))))
	}

	if reviewing {
		b.WriteString("\n" + a.styles.Subtitle.Render(fmt.Sprintf("Opposite pairs (%s selected)", s.SelectAllState())) + "\n")
		for _, p := range s.Pairs() {
			conf := a.styles.Muted.Render("low")
			if p.HighSimilarity {
				conf = a.styles.Success.Render("high")
			}
			fmt.Fprintf(&b, "  %s ↔ %s  %.2f %s\n", p.Ref1, p.Ref2, p.Similarity, conf)
		}
	}
	return b.String()
}

func (a *App) difference(r models.Row) string {
	cell := fmt.Sprintf("%10s", r.Difference.StringFixed(2))
	switch r.Difference.Sign() {
	case 1:
		return a.styles.Warning.Render(cell)
	case -1:
		return a.styles.Error.Render(cell)
	default:
		return cell
	}
}

func (a *App) line(i int, text string) string {
	if i == a.cursor {
		return lipgloss.JoinHorizontal(lipgloss.Top, a.styles.Selected.Render(">"), " "+text) + "\n"
	}
	return "  " + text + "\n"
}
