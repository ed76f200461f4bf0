package services

import (
	"fmt"
	"strings"

	"lifeplanner-backend/models"
	"lifeplanner-backend/utils"
)

// ComposeEventMessage renders the WhatsApp text for a calendar event reminder.
func ComposeEventMessage(event models.CalendarEvent, kind models.ReminderKind) string {
	var headline string
	switch kind {
	case models.KindDayBefore:
		headline = "Não esqueça do seu compromisso amanhã!"
	case models.KindDaysBefore:
		headline = "Você tem um compromisso chegando!"
	case models.KindDayOfThreeHoursBefore:
		headline = "Seu compromisso começa em breve!"
	default:
		headline = "Não esqueça do seu compromisso hoje!"
	}

	title := strings.TrimSpace(event.Title)
	if title == "" {
		title = "Evento"
	}

	lines := []string{
		headline,
		"Título: " + title,
		"Data: " + event.Date.Format("02/01/2006"),
	}
	if span := timeRange(event.StartTime, event.EndTime); span != "" {
		lines = append(lines, "Horário: "+span)
	}
	if notes := deref(event.Notes); notes != "" {
		lines = append(lines, "Notas: "+notes)
	}
	return strings.Join(lines, "\n")
}

// ComposeWorkoutMessage greets the user and names the routine of the day.
// routine may be nil when the slot has no routine or it was deleted.
func ComposeWorkoutMessage(slot models.WorkoutScheduleSlot, routine *models.WorkoutRoutine, profile models.Profile) string {
	name := "treino"
	groups := "-"
	if routine != nil {
		if n := strings.TrimSpace(routine.Name); n != "" {
			name = n
		}
		groups = muscleGroups(routine.MuscleGroups)
	}

	greeting := "Bom dia!"
	if n := strings.TrimSpace(profile.Name); n != "" {
		greeting = fmt.Sprintf("Bom dia, %s!", n)
	}

	at := ""
	if slot.TimeOfDay != nil {
		if t := utils.NormalizeTimeString(*slot.TimeOfDay); t != "" {
			at = " às " + t
		}
	}

	return fmt.Sprintf("%s Hoje é dia de %s%s. Grupos musculares: %s. Bora treinar! 💪", greeting, name, at, groups)
}

// ComposeDailyMessage renders a user-defined daily reminder.
func ComposeDailyMessage(r models.DailyReminder) string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "Lembrete"
	}
	msg := "⏰ Lembrete: " + title
	if notes := strings.TrimSpace(r.Notes); notes != "" {
		msg += "\nNotas: " + notes
	}
	return msg
}

func timeRange(start, end *string) string {
	s := utils.NormalizeTimeString(deref(start))
	e := utils.NormalizeTimeString(deref(end))
	switch {
	case s != "" && e != "":
		return s + " – " + e
	case s != "":
		return s
	case e != "":
		return "até " + e
	}
	return ""
}

func muscleGroups(raw string) string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
