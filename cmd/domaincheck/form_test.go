package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"domaincheck/internal/alert"
	"domaincheck/internal/checker"
	"domaincheck/internal/utils"

	tea "github.com/charmbracelet/bubbletea"
)

func init() {
	utils.TestInitLogger()
}

func newTestForm(t *testing.T, handler http.HandlerFunc, domain string) *formModel {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	ctrl := checker.New(checker.Options{
		BaseURL:      ts.URL,
		Alerts:       alert.NewStore(),
		Connectivity: checker.AlwaysOnline,
	})
	return newFormModel(context.Background(), ctrl, domain, false)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true,"data":{"domain":"example.com","available":false}}`))
}

func TestFormTyping(t *testing.T) {
	m := newTestForm(t, okHandler, "")
	for _, r := range "example.com" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if got := m.input.Value(); got != "example.com" {
		t.Errorf("input = %q", got)
	}
	if !strings.Contains(m.View(), "[enter] Check Domain") {
		t.Error("Idle view should offer the check action")
	}
}

func TestFormSubmitSuccess(t *testing.T) {
	m := newTestForm(t, okHandler, "example.com")
	if !m.autoSubmit {
		t.Fatal("Expected pre-filled domain to auto submit")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Enter should start a check")
	}
	msg := cmd()
	if s, ok := msg.(settledMsg); !ok || s.err != nil {
		t.Fatalf("Unexpected settle %#v", msg)
	}
	m.Update(msg)

	view := m.View()
	for _, want := range []string{"available:", "false", "domain:", checker.TitleSuccess, checker.MsgCheckSucceeded} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestFormSubmitEmpty(t *testing.T) {
	m := newTestForm(t, okHandler, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())
	if !strings.Contains(m.View(), checker.MsgEmptyDomain) {
		t.Errorf("Expected validation toast, got:\n%s", m.View())
	}
}

func TestFormSubmitFailure(t *testing.T) {
	m := newTestForm(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "example.com")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())
	view := m.View()
	if !strings.Contains(view, "HTTP error! status: 500") {
		t.Errorf("Expected transport toast, got:\n%s", view)
	}
	if strings.Contains(view, "available:") {
		t.Error("No result rows expected after a failure")
	}
}

func TestFormIgnoresEnterWhileLoading(t *testing.T) {
	m := newTestForm(t, okHandler, "example.com")
	m.state.Loading = true
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("Enter must be ignored while a check is running")
	}
	if !strings.Contains(m.View(), "Checking...") {
		t.Error("Loading view should show progress")
	}

	m.cancelInFlight = true
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Error("Enter should resubmit when in-flight checks are cancelled")
	}
}

func TestFormChangedMsgRearms(t *testing.T) {
	m := newTestForm(t, okHandler, "")
	m.ctrl.Alerts().Raise("Note", "hello", "")
	_, cmd := m.Update(changedMsg{source: m.alertCh})
	if cmd == nil {
		t.Error("Listener should be re-armed")
	}
	if m.state.Alert == nil || m.state.Alert.Description != "hello" {
		t.Errorf("State not refreshed: %+v", m.state.Alert)
	}
}

func TestFormQuit(t *testing.T) {
	m := newTestForm(t, okHandler, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
