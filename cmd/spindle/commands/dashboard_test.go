package commands

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestDashboardModelUpdateQuitsOnQ(t *testing.T) {
	m := newDashboardModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("Update('q') returned a nil cmd, want tea.Quit")
	}
}

func TestDashboardModelUpdateStoresData(t *testing.T) {
	m := newDashboardModel()
	next, _ := m.Update(dataMsg(dashboardPayload{Running: 3, ErrorsTotal: 1}))
	dm := next.(dashboardModel)
	if dm.payload.Running != 3 || dm.payload.ErrorsTotal != 1 {
		t.Errorf("payload = %+v, want Running=3 ErrorsTotal=1", dm.payload)
	}
	if dm.err != nil {
		t.Errorf("err = %v, want nil after a dataMsg", dm.err)
	}
}

func TestDashboardModelUpdateStoresError(t *testing.T) {
	m := newDashboardModel()
	next, _ := m.Update(errMsg(errors.New("boom")))
	dm := next.(dashboardModel)
	if dm.err == nil || dm.err.Error() != "boom" {
		t.Errorf("err = %v, want boom", dm.err)
	}
}

func TestDashboardModelViewShowsError(t *testing.T) {
	m := newDashboardModel()
	next, _ := m.Update(errMsg(errors.New("spindled down")))
	dm := next.(dashboardModel)
	view := dm.View()
	if !strings.Contains(view, "spindled down") {
		t.Errorf("View() = %q, want it to mention the error", view)
	}
}

func TestDashboardModelViewShowsSpinnerBeforeFirstLoad(t *testing.T) {
	m := newDashboardModel()
	view := m.View()
	if !strings.Contains(view, "loading dashboard") {
		t.Errorf("View() before first load = %q, want a loading indicator", view)
	}
}

func TestDashboardModelAdvancesSpinnerOnTick(t *testing.T) {
	m := newDashboardModel()
	_, cmd := m.Update(m.spinner.Tick())
	if cmd == nil {
		t.Error("spinner tick did not produce a follow-up cmd")
	}
}

func TestDashboardModelViewShowsCounts(t *testing.T) {
	m := newDashboardModel()
	next, _ := m.Update(dataMsg(dashboardPayload{Running: 2, CompleteLastHour: 5, ErrorsTotal: 0}))
	dm := next.(dashboardModel)
	view := dm.View()
	if !strings.Contains(view, "running: 2") || !strings.Contains(view, "complete (1h): 5") {
		t.Errorf("View() = %q, want running/complete counts", view)
	}
}

func TestErrorsStyleDistinguishesZero(t *testing.T) {
	if got, want := errorsStyle(0).Render("x"), dashDimStyle.Render("x"); got != want {
		t.Errorf("errorsStyle(0) = %q, want the dim style's rendering %q", got, want)
	}
	if got, want := errorsStyle(1).Render("x"), dashErrStyle.Render("x"); got != want {
		t.Errorf("errorsStyle(1) = %q, want the error style's rendering %q", got, want)
	}
}
