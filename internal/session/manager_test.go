package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/event"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m, err := NewManager(root, nil, nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return m, root
}

func TestCreate(t *testing.T) {
	t.Run("lite session has no state dir", func(t *testing.T) {
		m, _ := newTestManager(t)
		s, err := m.Create("fix typos", "lite")
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if s.ID == "" {
			t.Error("session should get a generated ID")
		}
		if s.Status != StatusActive {
			t.Errorf("Status = %q, want active", s.Status)
		}
		if s.WorkflowBinding == nil || s.WorkflowBinding.StateDir != "" {
			t.Error("lite sessions should not get a state dir")
		}
	})

	t.Run("full session provisions state dir", func(t *testing.T) {
		m, root := newTestManager(t)
		s, err := m.Create("big refactor", "full")
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		want := filepath.Join(root, "sessions", s.ID)
		if s.WorkflowBinding.StateDir != want {
			t.Errorf("StateDir = %q, want %q", s.WorkflowBinding.StateDir, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("state dir should exist on disk: %v", err)
		}
	})
}

func TestGetAndList(t *testing.T) {
	m, _ := newTestManager(t)

	first, _ := m.Create("first", "lite")
	second, _ := m.Create("second", "lite")

	got, err := m.Get(first.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Name != "first" {
		t.Errorf("Name = %q, want first", got.Name)
	}

	if _, err := m.Get("missing"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	t.Run("list preserves insertion order", func(t *testing.T) {
		list := m.List(false)
		if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
			t.Errorf("List returned wrong order")
		}
	})

	t.Run("archived filtered by default", func(t *testing.T) {
		if err := m.Archive(second.ID); err != nil {
			t.Fatalf("Archive returned error: %v", err)
		}
		if got := m.List(false); len(got) != 1 {
			t.Errorf("List(false) = %d sessions, want 1", len(got))
		}
		if got := m.List(true); len(got) != 2 {
			t.Errorf("List(true) = %d sessions, want 2", len(got))
		}
	})
}

func TestGetReturnsCopy(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Create("immutable", "lite")

	got, _ := m.Get(s.ID)
	got.Name = "mutated"
	got.BackendSessions["codex"] = "sneaky"

	fresh, _ := m.Get(s.ID)
	if fresh.Name != "immutable" || len(fresh.BackendSessions) != 0 {
		t.Error("mutating a returned session should not affect the catalog")
	}
}

func TestLinkBackendSession(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Create("linked", "lite")

	if err := m.LinkBackendSession(s.ID, "codex", "tok-1"); err != nil {
		t.Fatalf("LinkBackendSession returned error: %v", err)
	}
	// Idempotent relink.
	if err := m.LinkBackendSession(s.ID, "codex", "tok-1"); err != nil {
		t.Fatalf("idempotent relink returned error: %v", err)
	}
	// Replacement is allowed.
	if err := m.LinkBackendSession(s.ID, "codex", "tok-2"); err != nil {
		t.Fatalf("token replacement returned error: %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.BackendSessions["codex"] != "tok-2" {
		t.Errorf("token = %q, want tok-2", got.BackendSessions["codex"])
	}
}

func TestAddTaskRecord(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Create("tasked", "lite")

	if err := m.AddTaskRecord(s.ID, TaskRecord{
		Description:     "analyze",
		AssignedBackend: "codex",
		Status:          TaskCompleted,
	}); err != nil {
		t.Fatalf("AddTaskRecord returned error: %v", err)
	}
	if err := m.AddTaskRecord(s.ID, TaskRecord{
		Description:     "implement",
		AssignedBackend: "claude",
		Status:          TaskFailed,
	}); err != nil {
		t.Fatalf("AddTaskRecord returned error: %v", err)
	}

	got, _ := m.Get(s.ID)
	if len(got.TaskHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.TaskHistory))
	}
	if got.TaskHistory[0].Description != "analyze" {
		t.Error("history should preserve append order")
	}
	if got.TaskHistory[0].ID == "" || got.TaskHistory[0].Timestamp.IsZero() {
		t.Error("records should get generated IDs and timestamps")
	}
}

func TestUpdateStatus(t *testing.T) {
	legal := []struct{ from, to string }{
		{StatusActive, StatusPaused},
		{StatusActive, StatusCompleted},
		{StatusActive, StatusArchived},
		{StatusPaused, StatusActive},
		{StatusPaused, StatusArchived},
		{StatusCompleted, StatusArchived},
	}
	for _, tt := range legal {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	illegal := []struct{ from, to string }{
		{StatusCompleted, StatusActive},
		{StatusCompleted, StatusPaused},
		{StatusArchived, StatusActive},
		{StatusArchived, StatusPaused},
		{StatusArchived, StatusCompleted},
		{StatusPaused, StatusCompleted},
	}
	for _, tt := range illegal {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}

	t.Run("illegal transition returns typed error", func(t *testing.T) {
		m, _ := newTestManager(t)
		s, _ := m.Create("stuck", "lite")

		if err := m.UpdateStatus(s.ID, StatusCompleted); err != nil {
			t.Fatalf("UpdateStatus returned error: %v", err)
		}

		err := m.UpdateStatus(s.ID, StatusActive)
		if err == nil {
			t.Fatal("completed -> active should be rejected")
		}
		if !errors.Is(err, errors.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		var vErr *errors.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("expected *ValidationError, got %T", err)
		}

		got, _ := m.Get(s.ID)
		if got.Status != StatusCompleted {
			t.Errorf("status should be unchanged after rejection, got %q", got.Status)
		}
	})
}

func TestArchive(t *testing.T) {
	m, root := newTestManager(t)
	s, _ := m.Create("done", "full")

	if err := m.Archive(s.ID); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.Status != StatusArchived {
		t.Errorf("Status = %q, want archived", got.Status)
	}
	want := filepath.Join(root, "archive", s.ID)
	if got.WorkflowBinding.StateDir != want {
		t.Errorf("StateDir = %q, want %q", got.WorkflowBinding.StateDir, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("archived state dir should exist: %v", err)
	}

	if err := m.Archive(s.ID); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("double archive should be rejected, got %v", err)
	}
}

func TestArchiveMoveFailureLeavesStatusUnchanged(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Create("stuck", "full")

	// Deleting the state dir makes the relocation fail before any status
	// change is attempted.
	if err := os.RemoveAll(s.WorkflowBinding.StateDir); err != nil {
		t.Fatalf("RemoveAll returned error: %v", err)
	}

	if err := m.Archive(s.ID); err == nil {
		t.Fatal("Archive should surface the relocation failure")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("Status = %q, want active after failed archive", got.Status)
	}
}

func TestResume(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Create("paused work", "lite")

	if err := m.UpdateStatus(s.ID, StatusPaused); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	resumed, err := m.Resume(s.ID)
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if resumed.Status != StatusActive {
		t.Errorf("Status = %q, want active", resumed.Status)
	}

	if err := m.Archive(s.ID); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	if _, err := m.Resume(s.ID); !errors.Is(err, errors.ErrSessionArchived) {
		t.Errorf("resuming an archived session should fail, got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	root := t.TempDir()
	m1, err := NewManager(root, nil, nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	s, _ := m1.Create("durable", "lite")
	if err := m1.LinkBackendSession(s.ID, "gemini", "g-1"); err != nil {
		t.Fatalf("LinkBackendSession returned error: %v", err)
	}
	if err := m1.AddTaskRecord(s.ID, TaskRecord{Description: "step", Status: TaskCompleted}); err != nil {
		t.Fatalf("AddTaskRecord returned error: %v", err)
	}

	// Fresh manager over the same root sees everything.
	m2, err := NewManager(root, nil, nil)
	if err != nil {
		t.Fatalf("reopening manager returned error: %v", err)
	}

	got, err := m2.Get(s.ID)
	if err != nil {
		t.Fatalf("Get after reload returned error: %v", err)
	}
	if got.Name != "durable" {
		t.Errorf("Name = %q, want durable", got.Name)
	}
	if got.BackendSessions["gemini"] != "g-1" {
		t.Error("backend links should survive reload")
	}
	if len(got.TaskHistory) != 1 {
		t.Error("task history should survive reload")
	}
}

func TestCorruptTableRejected(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, tableFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewManager(root, nil, nil)
	if !errors.Is(err, errors.ErrSessionCorrupted) {
		t.Errorf("expected ErrSessionCorrupted, got %v", err)
	}
}

func TestSavePlan(t *testing.T) {
	m, root := newTestManager(t)
	s, _ := m.Create("planned", "quick")

	if err := m.SavePlan(s.ID, "1. do things\n2. verify"); err != nil {
		t.Fatalf("SavePlan returned error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "plans", s.ID))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one plan file, err=%v entries=%d", err, len(entries))
	}

	if err := m.SavePlan("ghost", "x"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("plan for unknown session should fail, got %v", err)
	}
}

func TestEventsPublished(t *testing.T) {
	bus := event.NewBus()
	var types []string
	bus.SubscribeAll(func(e event.Event) {
		types = append(types, e.EventType())
	})

	m, err := NewManager(t.TempDir(), nil, bus)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	s, _ := m.Create("observed", "lite")
	if err := m.UpdateStatus(s.ID, StatusPaused); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if err := m.Archive(s.ID); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	want := []string{"session.created", "session.status_changed", "session.status_changed", "session.archived"}
	if len(types) != len(want) {
		t.Fatalf("got %d events %v, want %v", len(types), types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, types[i], want[i])
		}
	}
}
