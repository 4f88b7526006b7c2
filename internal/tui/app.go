// Package tui is the interactive operator front end. It drives a session
// through its three steps and re-renders from the session after every
// command; it holds no reconciliation state of its own beyond cursors.
package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/review"
	"stock-reconciler/internal/session"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// Options configures the front end
type Options struct {
	// OutputDir receives exported tables
	OutputDir string
	// Format is the table format used by export
	Format reporter.OutputFormat
}

type verifiedMsg struct {
	token   session.Token
	records []models.VerificationRecord
	err     error
}

type processedMsg struct {
	token  session.Token
	result *models.ReconciliationResult
	err    error
}

// App is the bubbletea model over a session
type App struct {
	session    *session.Session
	aggregator session.Aggregator
	opts       Options
	keys       *KeyMap
	styles     *Styles
	logger     logger.Logger

	spinner spinner.Model
	input   textinput.Model
	editing bool
	// editID is the row being renamed
	editID string

	cursor  int
	field   int
	notices []string
	failed  bool

	width, height int
}

var _ tea.Model = (*App)(nil)

// NewApp creates the front end. The aggregator runs the requests the
// session begins.
func NewApp(s *session.Session, agg session.Aggregator, opts Options, log logger.Logger) (*App, error) {
	if s == nil || agg == nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "tui", errors.New("session and aggregator are required"))
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if !opts.Format.IsTable() {
		opts.Format = reporter.FormatXLSX
	}

	ti := textinput.New()
	ti.Placeholder = "new reference"
	ti.CharLimit = 64
	ti.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &App{
		session:    s,
		aggregator: agg,
		opts:       opts,
		keys:       DefaultKeyMap(),
		styles:     DefaultStyles(),
		logger:     log.WithComponent("tui"),
		spinner:    sp,
		input:      ti,
	}, nil
}

// Notices returns the notices of the last command
func (a *App) Notices() []string { return append([]string(nil), a.notices...) }

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.SetWindowTitle("stockrecon - " + a.session.Unit().ID)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case spinner.TickMsg:
		if !a.session.Pending() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case verifiedMsg:
		if msg.err != nil {
			a.showFailure(a.session.FailRequest(msg.token, msg.err))
			return a, nil
		}
		a.cursor, a.field = 0, 0
		a.show(a.session.CompleteVerify(msg.token, msg.records))
		return a, nil

	case processedMsg:
		if msg.err != nil {
			a.showFailure(a.session.FailRequest(msg.token, msg.err))
			return a, nil
		}
		a.cursor = 0
		a.show(a.session.CompleteProcess(msg.token, msg.result))
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.editing {
			return a.updateEdit(msg)
		}
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		if a.session.Pending() {
			if key.Matches(msg, a.keys.Back) {
				a.show(append(a.session.Navigate(), "Request cancelled"), nil)
			}
			return a, nil
		}
		switch a.session.Step() {
		case session.StepFiles:
			return a.updateFiles(msg)
		case session.StepVerify:
			return a.updateVerify(msg)
		default:
			return a.updateResults(msg)
		}
	}
	return a, nil
}

func (a *App) updateFiles(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	names := a.session.Unit().WorkshopNames()
	switch {
	case key.Matches(msg, a.keys.Up):
		a.move(-1, len(names))
	case key.Matches(msg, a.keys.Down):
		a.move(1, len(names))
	case key.Matches(msg, a.keys.Skip) && len(names) > 0:
		_, err := a.session.ToggleSkip(names[a.cursor])
		a.show(nil, err)
	case key.Matches(msg, a.keys.Unassign) && len(names) > 0:
		a.show(nil, a.session.UnassignFile(names[a.cursor]))
	case key.Matches(msg, a.keys.Verify):
		return a, a.startVerify()
	case key.Matches(msg, a.keys.Process):
		return a, a.startProcess()
	}
	return a, nil
}

func (a *App) updateVerify(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	adj, err := a.session.Adjudicator()
	if err != nil {
		a.show(nil, err)
		return a, nil
	}
	records := adj.Records()
	switch {
	case key.Matches(msg, a.keys.Up):
		a.move(-1, len(records))
	case key.Matches(msg, a.keys.Down):
		a.move(1, len(records))
	case key.Matches(msg, a.keys.Field):
		a.field = (a.field + 1) % 3
	case key.Matches(msg, a.keys.Prev), key.Matches(msg, a.keys.Next):
		if len(records) == 0 {
			return a, nil
		}
		step := 1
		if key.Matches(msg, a.keys.Prev) {
			step = -1
		}
		a.show(nil, a.cycleChoice(records[a.cursor].Workshop, step))
	case key.Matches(msg, a.keys.Process):
		return a, a.startProcess()
	case key.Matches(msg, a.keys.Back):
		a.cursor = 0
		a.show(a.session.Back(), nil)
	}
	return a, nil
}

// cycleChoice moves the focused field of workshop to the next candidate.
// The blank choice is part of the cycle and falls back to detection.
func (a *App) cycleChoice(workshop string, step int) error {
	adj, err := a.session.Adjudicator()
	if err != nil {
		return err
	}
	choices, err := adj.Choices(workshop)
	if err != nil {
		return err
	}
	current, err := adj.Current(workshop)
	if err != nil {
		return err
	}
	switch a.field {
	case 0:
		return adj.SelectSheet(workshop, cycle(choices.Sheets, current.SheetName, step))
	case 1:
		return adj.SelectRefColumn(workshop, cycle(choices.Columns, current.RefCol, step))
	default:
		return adj.SelectQtyColumn(workshop, cycle(choices.Columns, current.QtyCol, step))
	}
}

func cycle(options []string, current string, step int) string {
	all := append([]string{""}, options...)
	at := 0
	for i, o := range all {
		if o == current {
			at = i
			break
		}
	}
	return all[((at+step)%len(all)+len(all))%len(all)]
}

func (a *App) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows, _ := a.session.Rows()
	reviewing := a.session.ReviewState() == review.Reviewing

	switch {
	case key.Matches(msg, a.keys.Up):
		a.move(-1, len(rows))
	case key.Matches(msg, a.keys.Down):
		a.move(1, len(rows))

	case reviewing && key.Matches(msg, a.keys.Toggle):
		if len(rows) > 0 {
			a.show(nil, a.session.Toggle(rows[a.cursor].Ref))
		}
	case reviewing && key.Matches(msg, a.keys.ToggleAll):
		a.show(nil, a.session.ToggleAll())
	case reviewing && key.Matches(msg, a.keys.Commit):
		a.show(a.session.Commit())
	case reviewing && key.Matches(msg, a.keys.Cancel):
		a.show(a.session.Abandon(), nil)

	case key.Matches(msg, a.keys.Workshop):
		a.cursor = 0
		a.show(a.session.SelectWorkshop(a.nextWorkshop()))
	case key.Matches(msg, a.keys.View):
		view := models.ViewMatches
		if a.session.View() == models.ViewMatches {
			view = models.ViewDiscrepancies
		}
		a.cursor = 0
		a.show(a.session.SetView(view))
	case key.Matches(msg, a.keys.Review):
		a.show(a.session.EnterReview())
	case key.Matches(msg, a.keys.Edit):
		if len(rows) > 0 {
			a.editing = true
			a.editID = rows[a.cursor].ID
			a.input.SetValue(rows[a.cursor].Ref)
			return a, a.input.Focus()
		}
	case key.Matches(msg, a.keys.Delete):
		if len(rows) > 0 {
			a.show(a.session.DeleteRowByID(rows[a.cursor].ID))
		}
	case key.Matches(msg, a.keys.Stage):
		a.show(a.session.StageWorkshop())
	case key.Matches(msg, a.keys.ClearStage):
		a.show(a.session.ClearReport(), nil)
	case key.Matches(msg, a.keys.Export):
		written, err := a.session.ExportAll(a.opts.OutputDir, a.opts.Format)
		if err == nil {
			a.show([]string{fmt.Sprintf("%d files exported to %s", len(written), a.opts.OutputDir)}, nil)
		} else {
			a.show(nil, err)
		}
	case key.Matches(msg, a.keys.Back):
		a.cursor = 0
		a.show(a.session.Back(), nil)
	}

	if rows, _ := a.session.Rows(); a.cursor >= len(rows) {
		a.cursor = max(len(rows)-1, 0)
	}
	return a, nil
}

func (a *App) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Confirm):
		notices, err := a.session.EditRefByID(a.editID, a.input.Value())
		a.show(notices, err)
		if err != nil && apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			return a, nil
		}
		a.stopEditing()
		return a, nil
	case key.Matches(msg, a.keys.Cancel):
		a.stopEditing()
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) stopEditing() {
	a.editing = false
	a.editID = ""
	a.input.Blur()
	a.input.Reset()
}

func (a *App) startVerify() tea.Cmd {
	req, err := a.session.BeginVerify()
	if err != nil {
		a.show(nil, err)
		return nil
	}
	a.show([]string{"Verifying files..."}, nil)
	agg := a.aggregator
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		records, err := agg.Verify(req.Ctx, req.Payload)
		return verifiedMsg{token: req.Token, records: records, err: err}
	})
}

func (a *App) startProcess() tea.Cmd {
	req, err := a.session.BeginProcess()
	if err != nil {
		a.show(nil, err)
		return nil
	}
	a.show([]string{"Processing..."}, nil)
	agg := a.aggregator
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		result, err := agg.Process(req.Ctx, req.Payload)
		return processedMsg{token: req.Token, result: result, err: err}
	})
}

// show replaces the notices. A stale result is dropped without a notice.
func (a *App) show(notices []string, err error) {
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeStaleRequest) {
			a.logger.Debug("Discarded a stale result")
			return
		}
		a.notices, a.failed = []string{err.Error()}, true
		return
	}
	a.notices, a.failed = notices, false
}

func (a *App) showFailure(notices []string, err error) {
	a.show(notices, err)
	if err == nil {
		a.failed = true
	}
}

func (a *App) move(delta, n int) {
	if n == 0 {
		a.cursor = 0
		return
	}
	a.cursor = min(max(a.cursor+delta, 0), n-1)
}

func (a *App) nextWorkshop() string {
	names := a.session.Result().Names()
	for i, name := range names {
		if name == a.session.ActiveWorkshop() {
			return names[(i+1)%len(names)]
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}
