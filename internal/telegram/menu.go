package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

type action int

const (
	actionUnknown action = iota
	actionStart
	actionRegister
	actionApply
	actionListApplications
	actionClearApplications
	actionMeeting
	actionResume
	actionCancel
	actionStats
	actionExport
)

// Menu labels shown on the reply keyboard.
const (
	LabelRegister          = "Register"
	LabelApply             = "Apply for a job"
	LabelListApplications  = "Applications"
	LabelClearApplications = "Clear applications"
	LabelMeeting           = "Create meeting"
	LabelResume            = "Send résumé"
)

var menuLayout = [][]string{
	{LabelRegister, LabelApply},
	{LabelListApplications, LabelClearApplications},
	{LabelMeeting, LabelResume},
}

var labelActions = map[string]action{
	LabelRegister:          actionRegister,
	LabelApply:             actionApply,
	LabelListApplications:  actionListApplications,
	LabelClearApplications: actionClearApplications,
	LabelMeeting:           actionMeeting,
	LabelResume:            actionResume,
}

var commandActions = map[string]action{
	"/start":        actionStart,
	"/register":     actionRegister,
	"/apply":        actionApply,
	"/applications": actionListApplications,
	"/clear":        actionClearApplications,
	"/meeting":      actionMeeting,
	"/resume":       actionResume,
	"/cancel":       actionCancel,
	"/stats":        actionStats,
	"/export":       actionExport,
}

// matchAction resolves exact menu labels and bot commands. Commands may carry
// a "@botname" suffix or trailing arguments.
func matchAction(text string) action {
	if a, ok := labelActions[text]; ok {
		return a
	}

	if !strings.HasPrefix(text, "/") {
		return actionUnknown
	}

	command := strings.Fields(text)[0]
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}

	if a, ok := commandActions[strings.ToLower(command)]; ok {
		return a
	}
	return actionUnknown
}

func menuKeyboard() *models.ReplyKeyboardMarkup {
	rows := make([][]models.KeyboardButton, 0, len(menuLayout))
	for _, labels := range menuLayout {
		row := make([]models.KeyboardButton, 0, len(labels))
		for _, label := range labels {
			row = append(row, models.KeyboardButton{Text: label})
		}
		rows = append(rows, row)
	}

	return &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
	}
}
