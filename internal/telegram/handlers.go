package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/access"
	"hr_assistant_bot/internal/export"
	"hr_assistant_bot/internal/feature/application"
	"hr_assistant_bot/internal/feature/resume"
	"hr_assistant_bot/internal/feature/user"
	"hr_assistant_bot/internal/logging"
)

const (
	maxMessageLength = 4096
	exportFileName   = "applications.xlsx"
	followUpTimeout  = 30 * time.Second
)

type request struct {
	msg    *models.Message
	text   string
	logger *logrus.Entry
}

func (r *request) chatID() int64 {
	return r.msg.Chat.ID
}

func (r *request) handle() string {
	if r.msg.From == nil {
		return ""
	}
	return r.msg.From.Username
}

func (c *Client) route(ctx context.Context, req *request) {
	if req.msg.Document != nil {
		c.handleDocument(ctx, req)
		return
	}

	act := matchAction(req.text)

	// While a form is open, everything except /start and /cancel is an answer.
	// Messages without text (stickers, photos) reach the dialog empty and are
	// re-prompted there.
	if c.dialog != nil && c.dialog.Active(req.chatID()) && act != actionStart && act != actionCancel {
		c.handleDialogInput(ctx, req)
		return
	}

	switch act {
	case actionStart:
		c.handleStart(ctx, req)
	case actionRegister:
		c.handleRegister(ctx, req)
	case actionApply:
		c.handleApply(ctx, req)
	case actionListApplications:
		c.handleList(ctx, req)
	case actionClearApplications:
		c.handleClear(ctx, req)
	case actionMeeting:
		c.handleMeeting(ctx, req)
	case actionResume:
		c.reply(ctx, req, msgAskResume, menuKeyboard())
	case actionCancel:
		c.handleCancel(ctx, req)
	case actionStats:
		c.handleStats(ctx, req)
	case actionExport:
		c.handleExport(ctx, req)
	default:
		c.reply(ctx, req, msgNotUnderstood, menuKeyboard())
	}
}

func (c *Client) handleStart(ctx context.Context, req *request) {
	if c.dialog != nil && c.dialog.Cancel(req.chatID()) {
		req.logger.WithField("event", "application_abandoned").Info("open application dropped by /start")
	}
	c.reply(ctx, req, msgWelcome, menuKeyboard())
}

func (c *Client) handleRegister(ctx context.Context, req *request) {
	if c.registrar == nil || req.msg.From == nil {
		c.unavailable(ctx, req, "registration")
		return
	}

	from := req.msg.From
	registered, created, err := c.registrar.Register(ctx, user.Profile{
		ExternalID: from.ID,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Handle:     from.Username,
	})
	if err != nil {
		c.fail(ctx, req, "register_error", err)
		return
	}

	if !created {
		c.reply(ctx, req, msgAlreadyRegistered, menuKeyboard())
		return
	}
	c.reply(ctx, req, fmt.Sprintf(msgRegistered, registered.DisplayName()), menuKeyboard())
}

func (c *Client) handleApply(ctx context.Context, req *request) {
	if c.dialog == nil || req.msg.From == nil {
		c.unavailable(ctx, req, "applications")
		return
	}

	if _, err := c.dialog.Start(ctx, req.chatID(), req.msg.From.ID); err != nil {
		if errors.Is(err, application.ErrNotRegistered) {
			c.reply(ctx, req, msgNotRegistered, menuKeyboard())
			return
		}
		c.fail(ctx, req, "application_start_error", err)
		return
	}

	c.reply(ctx, req, msgAskPosition, removeKeyboard())
}

func (c *Client) handleDialogInput(ctx context.Context, req *request) {
	// Answers are taken from the raw message text, untrimmed.
	step, err := c.dialog.Advance(ctx, req.chatID(), req.msg.Text)
	switch {
	case errors.Is(err, application.ErrInvalidSalary):
		c.reply(ctx, req, msgInvalidSalary, removeKeyboard())
		return
	case errors.Is(err, application.ErrEmptyAnswer):
		c.reply(ctx, req, msgTextRequired+"\n"+questionFor(step.Stage), removeKeyboard())
		return
	case errors.Is(err, application.ErrNoDialog):
		c.reply(ctx, req, msgNotUnderstood, menuKeyboard())
		return
	case err != nil:
		c.fail(ctx, req, "application_save_error", err)
		return
	}

	if step.Stage == application.StageDone {
		summary := application.FormatLine(step.Application, c.currencyUnit)
		c.reply(ctx, req, fmt.Sprintf(msgApplicationDone, summary), menuKeyboard())
		return
	}
	c.reply(ctx, req, questionFor(step.Stage), removeKeyboard())
}

func questionFor(stage application.Stage) string {
	switch stage {
	case application.StageAwaitingSalary:
		return msgAskSalary
	case application.StageAwaitingRegion:
		return msgAskRegion
	default:
		return msgAskPosition
	}
}

func (c *Client) handleCancel(ctx context.Context, req *request) {
	if c.dialog != nil && c.dialog.Cancel(req.chatID()) {
		c.reply(ctx, req, msgCancelled, menuKeyboard())
		return
	}
	c.reply(ctx, req, msgNothingToCancel, menuKeyboard())
}

func (c *Client) handleList(ctx context.Context, req *request) {
	if c.catalog == nil {
		c.unavailable(ctx, req, "applications")
		return
	}

	apps, err := c.catalog.List(ctx)
	if err != nil {
		c.fail(ctx, req, "applications_list_error", err)
		return
	}
	if len(apps) == 0 {
		c.reply(ctx, req, msgNoApplications, menuKeyboard())
		return
	}

	lines := make([]string, 0, len(apps)+1)
	lines = append(lines, fmt.Sprintf(msgApplicationsHeader, len(apps)))
	for _, app := range apps {
		lines = append(lines, application.FormatLine(app, c.currencyUnit))
	}

	for _, chunk := range chunkLines(lines, maxMessageLength) {
		if !c.reply(ctx, req, chunk, menuKeyboard()) {
			return
		}
	}
}

func (c *Client) handleClear(ctx context.Context, req *request) {
	if c.catalog == nil {
		c.unavailable(ctx, req, "applications")
		return
	}

	deleted, err := c.catalog.Clear(ctx, req.handle())
	if err != nil {
		if errors.Is(err, access.ErrForbidden) {
			c.reply(ctx, req, msgPermissionDenied, menuKeyboard())
			return
		}
		c.fail(ctx, req, "applications_clear_error", err)
		return
	}

	c.reply(ctx, req, fmt.Sprintf(msgCleared, deleted), menuKeyboard())
}

func (c *Client) handleMeeting(ctx context.Context, req *request) {
	if c.meetings == nil {
		c.unavailable(ctx, req, "meetings")
		return
	}

	link, err := c.meetings.NewLink()
	if err != nil {
		c.fail(ctx, req, "meeting_error", err)
		return
	}

	req.logger.WithFields(logging.Fields{
		"event": "meeting_created",
		"link":  link,
	}).Info("meeting link generated")
	c.reply(ctx, req, fmt.Sprintf(msgMeetingLink, link), menuKeyboard())
}

func (c *Client) handleStats(ctx context.Context, req *request) {
	if c.stats == nil {
		c.unavailable(ctx, req, "stats")
		return
	}
	if err := c.policy.Require(req.handle(), access.ViewStats); err != nil {
		c.reply(ctx, req, msgPermissionDenied, menuKeyboard())
		return
	}

	stats, err := c.stats.Collect(ctx)
	if err != nil {
		c.fail(ctx, req, "stats_error", err)
		return
	}

	c.reply(ctx, req, fmt.Sprintf(msgStats, stats.Users, stats.Applications), menuKeyboard())
}

func (c *Client) handleExport(ctx context.Context, req *request) {
	if c.catalog == nil {
		c.unavailable(ctx, req, "export")
		return
	}
	if err := c.policy.Require(req.handle(), access.ExportApplications); err != nil {
		c.reply(ctx, req, msgPermissionDenied, menuKeyboard())
		return
	}

	apps, err := c.catalog.List(ctx)
	if err != nil {
		c.fail(ctx, req, "export_error", err)
		return
	}

	data, err := export.ApplicationsXLSX(apps, c.currencyUnit)
	if err != nil {
		c.fail(ctx, req, "export_error", err)
		return
	}

	_, err = c.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   req.chatID(),
		Document: &models.InputFileUpload{Filename: exportFileName, Data: bytes.NewReader(data)},
		Caption:  fmt.Sprintf(msgExportCaption, len(apps)),
	})
	if err != nil {
		req.logger.WithField("event", "telegram_send_error").WithError(err).Error("failed to send export")
		return
	}

	req.logger.WithFields(logging.Fields{
		"event": "applications_exported",
		"rows":  len(apps),
	}).Info("applications exported")
}

func (c *Client) handleDocument(ctx context.Context, req *request) {
	if c.intake == nil || req.msg.From == nil {
		c.unavailable(ctx, req, "resume")
		return
	}

	doc := req.msg.Document
	if !resume.Allowed(doc.FileName) {
		c.reply(ctx, req, msgUnsupportedFormat, menuKeyboard())
		return
	}

	chatID := req.chatID()
	logger := req.logger
	acknowledged := make(chan struct{})
	onNotified := func(err error) {
		<-acknowledged

		text := msgResumeNotified
		if err != nil {
			text = msgResumeNotifyError
		}

		sendCtx, cancel := context.WithTimeout(context.Background(), followUpTimeout)
		defer cancel()
		c.send(sendCtx, logger, chatID, text, menuKeyboard())
	}

	_, err := c.intake.Submit(ctx, resume.Upload{
		FileID:     doc.FileID,
		FileName:   doc.FileName,
		ExternalID: req.msg.From.ID,
		Handle:     req.msg.From.Username,
	}, onNotified)
	if err != nil {
		if errors.Is(err, resume.ErrUnsupportedFormat) {
			c.reply(ctx, req, msgUnsupportedFormat, menuKeyboard())
			return
		}
		c.fail(ctx, req, "resume_save_error", err)
		return
	}

	// The follow-up must not overtake this acknowledgement.
	c.reply(ctx, req, msgResumeSaved, menuKeyboard())
	close(acknowledged)
}

func (c *Client) unavailable(ctx context.Context, req *request, feature string) {
	req.logger.WithFields(logging.Fields{
		"event":   "feature_unavailable",
		"feature": feature,
	}).Warn("feature is not configured")
	c.reply(ctx, req, msgFailure, menuKeyboard())
}

func (c *Client) fail(ctx context.Context, req *request, event string, err error) {
	req.logger.WithField("event", event).WithError(err).Error("request failed")
	c.reply(ctx, req, msgFailure, menuKeyboard())
}

func (c *Client) reply(ctx context.Context, req *request, text string, markup models.ReplyMarkup) bool {
	return c.send(ctx, req.logger, req.chatID(), text, markup)
}

func (c *Client) send(ctx context.Context, logger *logrus.Entry, chatID int64, text string, markup models.ReplyMarkup) bool {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		logger.WithField("event", "telegram_send_error").WithError(err).Error("failed to send message")
		return false
	}
	return true
}

func removeKeyboard() *models.ReplyKeyboardRemove {
	return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
}

// chunkLines joins lines with newlines into messages of at most limit runes.
// A single line longer than limit is split.
func chunkLines(lines []string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
	)

	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range lines {
		for utf8.RuneCountInString(line) > limit {
			flush()
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
		}

		n := utf8.RuneCountInString(line)
		if size > 0 && size+1+n > limit {
			flush()
		}
		if size > 0 {
			current.WriteByte('\n')
			size++
		}
		current.WriteString(line)
		size += n
	}
	flush()

	return chunks
}
