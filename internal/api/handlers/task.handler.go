package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/scheduler"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// TaskHandler serves scheduled task CRUD and execution history.
type TaskHandler struct {
	sched *scheduler.Scheduler
	log   logger.Logger
}

func NewTaskHandler(sched *scheduler.Scheduler, log logger.Logger) *TaskHandler {
	return &TaskHandler{sched: sched, log: log}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var task models.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.Error(models.E(models.KindInput, "api.CreateTask", err))
		return
	}
	if err := h.sched.CreateTask(&task); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var task models.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.Error(models.E(models.KindInput, "api.UpdateTask", err))
		return
	}
	task.TaskID = c.Param("id")
	if err := h.sched.UpdateTask(&task); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.sched.Store().GetTask(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks, err := h.sched.Store().ListTasks()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.sched.DeleteTask(c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *TaskHandler) EnableTask(c *gin.Context) {
	h.setEnabled(c, true)
}

func (h *TaskHandler) DisableTask(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *TaskHandler) setEnabled(c *gin.Context, enabled bool) {
	if err := h.sched.SetEnabled(c.Param("id"), enabled); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

// RunTask triggers a manual execution.
func (h *TaskHandler) RunTask(c *gin.Context) {
	execID, err := h.sched.RunNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"execution_id": execID})
}

// ListExecutions returns execution history for one task, newest first.
func (h *TaskHandler) ListExecutions(c *gin.Context) {
	const op = "api.ListExecutions"
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(models.E(models.KindInput, op, "bad limit"))
			return
		}
		limit = n
	}
	execs, err := h.sched.Store().ListExecutions(c.Param("id"), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": execs})
}
