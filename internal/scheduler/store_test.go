package scheduler

import (
	"testing"
	"time"

	"github.com/framepulse/framepulse-core/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func TestStore_TaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	task := &models.Task{
		TaskID:   "t1",
		Name:     "nightly sweep",
		TaskType: models.TaskBatchImage,
		CronExpr: "0 3 * * *",
		Enabled:  true,
		Config:   models.TaskConfig{InputPath: "/data/frames", Profile: "strict"},
	}
	if err := s.SaveTask(task); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != task.Name || got.Config.Profile != "strict" || got.CronExpr != task.CronExpr {
		t.Fatalf("round trip lost fields: %+v", got)
	}

	if _, err := s.GetTask("missing"); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	if err := s.DeleteTask("t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTask("t1"); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("double delete: err = %v, want NotFound", err)
	}
}

func TestStore_ListTasksOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "c", "a"} {
		task := &models.Task{
			TaskID:    id,
			Name:      id,
			TaskType:  models.TaskBatchImage,
			CronExpr:  "* * * * *",
			Config:    models.TaskConfig{InputPath: "/in"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveTask(task); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	tasks, err := s.ListTasks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 || tasks[0].TaskID != "b" || tasks[2].TaskID != "a" {
		ids := []string{}
		for _, task := range tasks {
			ids = append(ids, task.TaskID)
		}
		t.Fatalf("order = %v, want [b c a]", ids)
	}
}

func TestStore_ExecutionTerminalFreeze(t *testing.T) {
	s := newTestStore(t)
	exec := &models.Execution{
		ExecutionID: "e1",
		TaskID:      "t1",
		Status:      models.ExecutionRunning,
		StartedAt:   time.Now(),
	}
	if err := s.SaveExecution(exec); err != nil {
		t.Fatalf("save running: %v", err)
	}
	// running records may be updated
	exec.ItemsTotal = 10
	exec.Status = models.ExecutionSuccess
	if err := s.SaveExecution(exec); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// terminal records are frozen
	exec.ItemsTotal = 99
	if err := s.SaveExecution(exec); !models.IsKind(err, models.KindConflict) {
		t.Fatalf("rewrite of terminal record: err = %v, want Conflict", err)
	}
	got, err := s.GetExecution("t1", "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ItemsTotal != 10 {
		t.Fatalf("frozen record mutated: %+v", got)
	}
}

func TestStore_ListExecutionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		exec := &models.Execution{
			ExecutionID: string(rune('a' + i)),
			TaskID:      "t1",
			Status:      models.ExecutionSuccess,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SaveExecution(exec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	execs, err := s.ListExecutions("t1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(execs) != 5 || execs[0].ExecutionID != "e" || execs[4].ExecutionID != "a" {
		t.Fatalf("order wrong: %+v", execs)
	}
	limited, err := s.ListExecutions("t1", 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[0].ExecutionID != "e" {
		t.Fatalf("limit kept wrong records: %+v", limited)
	}
}

func TestStore_Prune(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	starts := []time.Duration{0, -time.Hour, -2 * time.Hour, -72 * time.Hour}
	for i, d := range starts {
		exec := &models.Execution{
			ExecutionID: string(rune('a' + i)),
			TaskID:      "t1",
			Status:      models.ExecutionSuccess,
			StartedAt:   now.Add(d),
		}
		if err := s.SaveExecution(exec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// age-based: keep the newest plus anything under a day old
	if err := s.Prune("t1", 1, 1); err != nil {
		t.Fatalf("prune: %v", err)
	}
	execs, _ := s.ListExecutions("t1", 0)
	if len(execs) != 3 {
		t.Fatalf("kept %d records, want 3", len(execs))
	}
	for _, e := range execs {
		if now.Sub(e.StartedAt) > 24*time.Hour {
			t.Fatalf("stale record survived: %+v", e)
		}
	}

	// count-based: without an age cutoff only the floor survives
	if err := s.Prune("t1", 2, 0); err != nil {
		t.Fatalf("prune: %v", err)
	}
	execs, _ = s.ListExecutions("t1", 0)
	if len(execs) != 2 {
		t.Fatalf("kept %d records, want 2", len(execs))
	}

	// unknown task is a no-op
	if err := s.Prune("missing", 1, 1); err != nil {
		t.Fatalf("prune missing: %v", err)
	}
}
