// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/access"
	"hr_assistant_bot/internal/config"
	"hr_assistant_bot/internal/domain"
	"hr_assistant_bot/internal/feature/application"
	"hr_assistant_bot/internal/feature/resume"
	"hr_assistant_bot/internal/feature/user"
	"hr_assistant_bot/internal/logging"
	"hr_assistant_bot/internal/store"
)

const downloadTimeout = 30 * time.Second

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	fileAPI
}

type userRegistrar interface {
	Register(ctx context.Context, profile user.Profile) (domain.User, bool, error)
}

type applicationDialog interface {
	Start(ctx context.Context, chatID, externalID int64) (application.Stage, error)
	Active(chatID int64) bool
	Cancel(chatID int64) bool
	Advance(ctx context.Context, chatID int64, text string) (application.Step, error)
}

type applicationCatalog interface {
	List(ctx context.Context) ([]domain.Application, error)
	Clear(ctx context.Context, handle string) (int64, error)
}

type meetingGenerator interface {
	NewLink() (string, error)
}

type statsCollector interface {
	Collect(ctx context.Context) (store.Stats, error)
}

type accessPolicy interface {
	Require(handle string, capability access.Capability) error
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Option customizes the Telegram client.
type Option func(*Client)

// WithUserRegistrar wires registration handling.
func WithUserRegistrar(registrar userRegistrar) Option {
	return func(c *Client) {
		c.registrar = registrar
	}
}

// WithApplicationDialog wires the position, salary, and region form.
func WithApplicationDialog(dialog applicationDialog) Option {
	return func(c *Client) {
		c.dialog = dialog
	}
}

// WithCatalog wires application listing and clearing.
func WithCatalog(catalog applicationCatalog) Option {
	return func(c *Client) {
		c.catalog = catalog
	}
}

// WithResumeStorage saves uploaded résumés under dir and notifies HR through notifier.
func WithResumeStorage(dir string, notifier resume.Notifier) Option {
	return func(c *Client) {
		c.resumeDir = dir
		c.resumeNotifier = notifier
	}
}

// WithMeetingGenerator wires meeting link creation.
func WithMeetingGenerator(generator meetingGenerator) Option {
	return func(c *Client) {
		c.meetings = generator
	}
}

// WithStatsProvider wires the /stats command.
func WithStatsProvider(stats statsCollector) Option {
	return func(c *Client) {
		c.stats = stats
	}
}

// WithAccessPolicy sets the policy consulted by privileged commands.
func WithAccessPolicy(policy accessPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// Client wraps the Telegram bot instance and the features it routes to.
type Client struct {
	bot    botAPI
	logger *logrus.Entry

	registrar userRegistrar
	dialog    applicationDialog
	catalog   applicationCatalog
	meetings  meetingGenerator
	stats     statsCollector
	policy    accessPolicy
	intake    *resume.Intake

	resumeDir      string
	resumeNotifier resume.Notifier
	currencyUnit   string
}

// NewClient initializes the Telegram bot with long polling and routes updates
// to the configured features.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		logger:       logger,
		currencyUnit: cfg.CurrencyUnit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.policy == nil {
		client.policy = access.NewPolicy(cfg.PrivilegedHandles)
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}
	client.bot = tgBot

	if client.resumeNotifier != nil {
		fetcher := &fileFetcher{api: tgBot, http: &http.Client{Timeout: downloadTimeout}}
		client.intake = resume.NewIntake(client.resumeDir, fetcher, client.resumeNotifier, logger)
	}

	return client, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// Wait blocks until background résumé notifications have finished.
func (c *Client) Wait() {
	if c == nil || c.intake == nil {
		return
	}
	c.intake.Wait()
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)
	logger := c.logger.WithFields(logging.ContextFields(logging.Context{
		RequestID: uuid.NewString(),
		UserID:    meta.userID,
		ChatID:    meta.chatID,
	})).WithField("update_type", meta.updateType)

	fields := logging.Fields{"event": "telegram_update"}
	if meta.text != "" {
		fields["text"] = meta.text
	}
	logger.WithFields(fields).Info("telegram update received")

	if update.Message == nil {
		return
	}

	c.route(ctx, &request{
		msg:    update.Message,
		text:   meta.text,
		logger: logger,
	})
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     update.Message.Chat.ID,
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.EditedMessage != nil:
		return updateMeta{
			userID:     userID(update.EditedMessage.From),
			chatID:     update.EditedMessage.Chat.ID,
			text:       strings.TrimSpace(update.EditedMessage.Text),
			updateType: "edited_message",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}
