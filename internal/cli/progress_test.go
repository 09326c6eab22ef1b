package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/fossaudit/pkg/audit"
)

func TestScanModel(t *testing.T) {
	cancelled := false
	var m tea.Model = newScanModel(4, func() { cancelled = true })

	shop := audit.RepoRef{Owner: "acme", Name: "shop", Branch: "master"}
	admin := audit.RepoRef{Owner: "acme", Name: "admin", Branch: "develop"}
	m, _ = m.Update(scanMsg{Repo: shop, Status: audit.ScanIncluded, Packages: 12, Done: 1, Total: 4})
	m, _ = m.Update(scanMsg{Repo: admin, Status: audit.ScanSkipped, Reason: "no Gemfile", Done: 2, Total: 4})

	sm := m.(scanModel)
	if sm.done != 2 || sm.included != 1 || sm.skipped != 1 || sm.packages != 12 {
		t.Errorf("model = %+v", sm)
	}
	view := m.View()
	for _, want := range []string{"2/4", "1 included", "1 skipped", "admin/develop"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled || cmd == nil {
		t.Error("ctrl+c should cancel the scan and quit")
	}

	m, _ = m.Update(scanDoneMsg{err: errors.New("boom")})
	if sm := m.(scanModel); !sm.finished || sm.err == nil || m.View() != "" {
		t.Errorf("finished model = %+v", sm)
	}
}

func TestRunScan_NonInteractive(t *testing.T) {
	var events []audit.ScanEvent
	err := runScan(context.Background(), log.New(io.Discard), 2, false, func(ctx context.Context, onScan func(audit.ScanEvent)) error {
		for i, status := range []audit.ScanStatus{audit.ScanIncluded, audit.ScanSkipped} {
			ev := audit.ScanEvent{Repo: audit.RepoRef{Name: "shop", Branch: "master"}, Status: status, Done: i + 1, Total: 2}
			events = append(events, ev)
			onScan(ev)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("runScan: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d", len(events))
	}

	want := errors.New("scan failed")
	err = runScan(context.Background(), log.New(io.Discard), 1, false, func(context.Context, func(audit.ScanEvent)) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}
