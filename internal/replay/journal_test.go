package replay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/engine"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
)

// TestFromJournal_ReplaysLiveSession drives a live engine with a journal,
// extracts the journal into a fixture and checks that replay reproduces every
// recorded action.
func TestFromJournal_ReplaysLiveSession(t *testing.T) {
	j, err := logging.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	log, _ := test.NewNullLogger()
	cfg := markovOnly()
	e := engine.New(cfg, engine.Options{Journal: j, Logger: log})
	e.AllowedToRun("A", evening)
	e.ForegroundChanged("A", "B")
	e.AllowedToRun("A", evening)
	e.ForegroundChanged("A", "C")
	e.ForegroundChanged("C", "C")
	e.AllowedToRun("B", evening)
	e.TTLExpiredNoNextApp("B")
	e.PrefetchTTLExpiredNotUsed("A", "B")
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows, err := j.ListEvents(100)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 journaled events, got %d", len(rows))
	}

	events, expected, err := FromJournal(rows)
	if err != nil {
		t.Fatalf("FromJournal: %v", err)
	}
	if events[0].Context != evening {
		t.Errorf("context not restored: %+v", events[0].Context)
	}

	f := &Fixture{Config: FromPredictorConfig(cfg), Events: events, ExpectedResults: expected}
	mismatches, _, _ := f.Check()
	for _, m := range mismatches {
		t.Errorf("event %d (%s %s): journal=%s replay=%s", m.Index, m.Kind, m.App, m.Expected, m.Actual)
	}
	if expected[4].Action != ActionIgnored {
		t.Errorf("self transition: expected ignored, got %s", expected[4].Action)
	}
}

// TestFromJournal_BadContext verifies a corrupt row is reported.
func TestFromJournal_BadContext(t *testing.T) {
	_, _, err := FromJournal([]logging.HookEvent{{EventID: "x", Kind: KindAllowedToRun, AppA: "A", ContextJSON: "{"}})
	if err == nil {
		t.Fatal("expected error for corrupt context, got nil")
	}
}
