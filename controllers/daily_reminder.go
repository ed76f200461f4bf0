// controllers/daily_reminder.go
package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lifeplanner-backend/models"
	"lifeplanner-backend/utils"
)

type DailyReminderStore interface {
	ListDailyReminders(ctx context.Context, ownerID string) ([]models.DailyReminder, error)
	CreateDailyReminder(ctx context.Context, r *models.DailyReminder) error
	DeleteDailyReminder(ctx context.Context, id, ownerID string) (bool, error)
}

// CreateDailyReminderInput defines the expected JSON structure
type CreateDailyReminderInput struct {
	Title        string `json:"title" binding:"required"`
	Notes        string `json:"notes"`
	ReminderTime string `json:"reminder_time" binding:"required"`
}

type DailyReminderController struct {
	Store DailyReminderStore
}

// GetDailyReminders lists the caller's daily reminders
func (dc *DailyReminderController) GetDailyReminders(c *gin.Context) {
	userID := c.GetString("userId")
	if userID == "" {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	reminders, err := dc.Store.ListDailyReminders(c.Request.Context(), userID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch daily reminders")
		return
	}
	if reminders == nil {
		reminders = []models.DailyReminder{}
	}

	c.JSON(http.StatusOK, reminders)
}

// CreateDailyReminder stores a new reminder for the caller
func (dc *DailyReminderController) CreateDailyReminder(c *gin.Context) {
	userID := c.GetString("userId")
	if userID == "" {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	var input CreateDailyReminderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Title is required")
		return
	}
	tod, err := utils.ParseTimeOfDay(input.ReminderTime)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid reminder_time, expected HH:MM")
		return
	}

	reminder := models.DailyReminder{
		OwnerID:      userID,
		Title:        title,
		Notes:        strings.TrimSpace(input.Notes),
		ReminderTime: tod.String(),
		Active:       true,
	}
	if err := dc.Store.CreateDailyReminder(c.Request.Context(), &reminder); err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create daily reminder")
		return
	}

	c.JSON(http.StatusCreated, reminder)
}

// DeleteDailyReminder removes one of the caller's reminders
func (dc *DailyReminderController) DeleteDailyReminder(c *gin.Context) {
	userID := c.GetString("userId")
	if userID == "" {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	deleted, err := dc.Store.DeleteDailyReminder(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete daily reminder")
		return
	}
	if !deleted {
		utils.RespondWithError(c, http.StatusNotFound, "Daily reminder not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Daily reminder deleted successfully"})
}
