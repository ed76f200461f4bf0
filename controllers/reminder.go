// controllers/reminder.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifeplanner-backend/services"
	"lifeplanner-backend/utils"
)

// PassScheduler is the part of the poll loop the ops endpoints drive.
type PassScheduler interface {
	Tick() (services.PassReport, error)
	Status() services.SchedulerStatus
}

type ReminderController struct {
	Scheduler PassScheduler
	Ledger    services.Ledger
	Clock     utils.Clock
}

// GetStatus returns the scheduler state and the last pass report
func (rc *ReminderController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, rc.Scheduler.Status())
}

// RunNow triggers one pass through the same guard the timer uses
func (rc *ReminderController) RunNow(c *gin.Context) {
	report, err := rc.Scheduler.Tick()
	switch {
	case errors.Is(err, services.ErrPassInProgress):
		utils.RespondWithError(c, http.StatusConflict, "A reminder pass is already running")
		return
	case errors.Is(err, services.ErrSchedulerStopped):
		utils.RespondWithError(c, http.StatusServiceUnavailable, "Scheduler is shutting down")
		return
	case err != nil:
		utils.RespondWithError(c, http.StatusInternalServerError, "Reminder pass failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetLogs lists ledger records for ?day=YYYY-MM-DD, today by default
func (rc *ReminderController) GetLogs(c *gin.Context) {
	day := c.Query("day")
	if day == "" {
		day = utils.DayString(rc.Clock.Now())
	} else if _, err := utils.ParseDay(day, rc.Clock.Location()); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid day, expected YYYY-MM-DD")
		return
	}

	records, err := rc.Ledger.ListDay(c.Request.Context(), day)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch reminder logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"day":     day,
		"count":   len(records),
		"records": records,
	})
}
