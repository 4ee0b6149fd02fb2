package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/framepulse/framepulse-core/internal/models"
)

// Store persists tasks and executions as JSON files:
//
//	{root}/tasks/{task_id}.json
//	{root}/executions/{task_id}/{execution_id}.json
//
// All writes are write-then-rename so readers never observe a torn record.
type Store struct {
	root string
	mu   sync.RWMutex
}

func NewStore(root string) (*Store, error) {
	const op = "scheduler.NewStore"
	for _, dir := range []string{root, filepath.Join(root, "tasks"), filepath.Join(root, "executions")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.E(models.KindInternal, op, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) taskPath(id string) string {
	return filepath.Join(s.root, "tasks", id+".json")
}

func (s *Store) executionDir(taskID string) string {
	return filepath.Join(s.root, "executions", taskID)
}

func (s *Store) executionPath(taskID, execID string) string {
	return filepath.Join(s.executionDir(taskID), execID+".json")
}

// SaveTask writes a task record atomically.
func (s *Store) SaveTask(task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.taskPath(task.TaskID), task)
}

// GetTask loads one task.
func (s *Store) GetTask(id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var task models.Task
	if err := readJSON(s.taskPath(id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes the definition. Execution history is preserved.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.taskPath(id)); err != nil {
		if os.IsNotExist(err) {
			return models.E(models.KindNotFound, "scheduler.Store.DeleteTask", "unknown task "+id)
		}
		return models.E(models.KindInternal, "scheduler.Store.DeleteTask", err)
	}
	return nil
}

// ListTasks returns all tasks sorted by creation time then id.
func (s *Store) ListTasks() ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(filepath.Join(s.root, "tasks"))
	if err != nil {
		return nil, models.E(models.KindInternal, "scheduler.Store.ListTasks", err)
	}
	var tasks []*models.Task
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var task models.Task
		if err := readJSON(filepath.Join(s.root, "tasks", e.Name()), &task); err != nil {
			continue
		}
		tasks = append(tasks, &task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})
	return tasks, nil
}

// SaveExecution persists an execution record. Once a record reaches a
// terminal status it is frozen; further writes are a Conflict.
func (s *Store) SaveExecution(exec *models.Execution) error {
	const op = "scheduler.Store.SaveExecution"
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.executionPath(exec.TaskID, exec.ExecutionID)
	var existing models.Execution
	if err := readJSON(path, &existing); err == nil && existing.Status.Terminal() {
		return models.E(models.KindConflict, op, "execution already finalized")
	}
	if err := os.MkdirAll(s.executionDir(exec.TaskID), 0o755); err != nil {
		return models.E(models.KindInternal, op, err)
	}
	return writeJSON(path, exec)
}

// GetExecution loads one execution record.
func (s *Store) GetExecution(taskID, execID string) (*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var exec models.Execution
	if err := readJSON(s.executionPath(taskID, execID), &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// ListExecutions returns executions newest first. An empty taskID lists
// every task's history.
func (s *Store) ListExecutions(taskID string, limit int) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var taskIDs []string
	if taskID != "" {
		taskIDs = []string{taskID}
	} else {
		entries, err := os.ReadDir(filepath.Join(s.root, "executions"))
		if err != nil {
			return nil, models.E(models.KindInternal, "scheduler.Store.ListExecutions", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				taskIDs = append(taskIDs, e.Name())
			}
		}
	}
	var execs []*models.Execution
	for _, id := range taskIDs {
		entries, err := os.ReadDir(s.executionDir(id))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			var exec models.Execution
			if err := readJSON(filepath.Join(s.executionDir(id), e.Name()), &exec); err != nil {
				continue
			}
			execs = append(execs, &exec)
		}
	}
	sort.Slice(execs, func(i, j int) bool { return execs[i].StartedAt.After(execs[j].StartedAt) })
	if limit > 0 && len(execs) > limit {
		execs = execs[:limit]
	}
	return execs, nil
}

// Prune enforces history retention for one task: at least minKeep records
// survive, and records older than keepDays (when positive) are dropped
// beyond that floor.
func (s *Store) Prune(taskID string, minKeep, keepDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.executionDir(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return models.E(models.KindInternal, "scheduler.Store.Prune", err)
	}
	type rec struct {
		path    string
		started time.Time
	}
	var recs []rec
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.executionDir(taskID), e.Name())
		var exec models.Execution
		if err := readJSON(path, &exec); err != nil {
			continue
		}
		recs = append(recs, rec{path: path, started: exec.StartedAt})
	}
	if len(recs) <= minKeep {
		return nil
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].started.After(recs[j].started) })
	cutoff := time.Time{}
	if keepDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -keepDays)
	}
	for i := minKeep; i < len(recs); i++ {
		if cutoff.IsZero() || recs[i].started.Before(cutoff) {
			os.Remove(recs[i].path)
		}
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	const op = "scheduler.writeJSON"
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return models.E(models.KindInternal, op, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return models.E(models.KindInternal, op, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return models.E(models.KindInternal, op, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.E(models.KindNotFound, "scheduler.readJSON", filepath.Base(path)+" not found")
		}
		return models.E(models.KindInternal, "scheduler.readJSON", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return models.E(models.KindInternal, "scheduler.readJSON", err)
	}
	return nil
}
