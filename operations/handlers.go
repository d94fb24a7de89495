package operations

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
	"gorm.io/gorm"
)

// TriggerRunHandler queues a manual reconciliation run. Manual triggers are
// serialized with a short redis lock so a double-clicked button doesn't queue
// twice; the run itself stays safe without it.
func TriggerRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(c.Request.Context(), "operations:manual-trigger", 10*time.Second, nil)
			if errors.Is(err, redislock.ErrNotObtained) {
				c.JSON(http.StatusConflict, gin.H{"error": "a manual run was just triggered"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			defer lock.Release(config.GetRedisContext())
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		run := models.OperationRun{
			CorrelationId: uuid.NewString(),
			Status:        models.RunStatusQueued,
			TriggeredBy:   models.RunTriggeredManual,
		}
		if err := db.WithContext(c.Request.Context()).Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishOperationRun(c.Request.Context(), run.ID, run.CorrelationId); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "TriggerRunHandler", "Publishing run", run.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue run"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID, "correlationId": run.CorrelationId})
	}
}

func RunHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		var runs []models.OperationRun
		if err := db.WithContext(c.Request.Context()).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, RunHistoryResponse{Items: items})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		var run models.OperationRun
		if err := db.WithContext(c.Request.Context()).Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, mapRunToResponse(run))
	}
}

func mapRunToResponse(run models.OperationRun) RunResponse {
	return RunResponse{
		ID:                 run.ID,
		CorrelationId:      run.CorrelationId,
		Status:             run.Status,
		TriggeredBy:        run.TriggeredBy,
		StartedAt:          formatTime(run.StartedAt),
		FinishedAt:         formatTime(run.FinishedAt),
		DurationMs:         run.DurationMs,
		CandidateCount:     run.CandidateCount,
		OperatedBySchedule: run.OperatedBySchedule,
		OperatedByBulk:     run.OperatedByBulk,
		TicketsCreated:     run.TicketsCreated,
		ErrorCount:         run.ErrorCount,
		LastError:          run.LastError,
	}
}
