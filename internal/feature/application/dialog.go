// Package application implements the job application dialog and the
// listing/clearing of stored applications.
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/domain"
	"hr_assistant_bot/internal/logging"
)

// Stage is a dialog position.
type Stage int

const (
	StageIdle Stage = iota
	StageAwaitingPosition
	StageAwaitingSalary
	StageAwaitingRegion
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingPosition:
		return "awaiting_position"
	case StageAwaitingSalary:
		return "awaiting_salary"
	case StageAwaitingRegion:
		return "awaiting_region"
	case StageDone:
		return "done"
	default:
		return "idle"
	}
}

var (
	// ErrNotRegistered is returned when a dialog is started by an unknown user.
	ErrNotRegistered = errors.New("user is not registered")
	// ErrInvalidSalary is returned for salary input that is not a plain non-negative integer.
	ErrInvalidSalary = errors.New("salary must be a non-negative whole number")
	// ErrNoDialog is returned when input arrives for a chat without an active dialog.
	ErrNoDialog = errors.New("no active dialog")
	// ErrEmptyAnswer is returned when a free-text step receives no text.
	ErrEmptyAnswer = errors.New("answer must be text")
)

type userLookup interface {
	Lookup(ctx context.Context, externalID int64) (domain.User, error)
}

type draft struct {
	userID   int64
	stage    Stage
	position string
	salary   int64
}

// Step reports where the dialog stands after an input. Application is set
// once the dialog reaches StageDone.
type Step struct {
	Stage       Stage
	Application domain.Application
}

// Dialog drives the position → salary → region form, one session per chat.
// Sessions live in memory only and are removed on completion or cancel.
type Dialog struct {
	users  userLookup
	apps   domain.ApplicationStore
	logger *logrus.Entry

	mu       sync.Mutex
	sessions map[int64]*draft
}

// NewDialog constructs a Dialog.
func NewDialog(users userLookup, apps domain.ApplicationStore, logger *logrus.Entry) *Dialog {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dialog{
		users:    users,
		apps:     apps,
		logger:   logger,
		sessions: make(map[int64]*draft),
	}
}

// Start opens a session for chatID if externalID belongs to a registered
// user. Starting again restarts the form from the first question.
func (d *Dialog) Start(ctx context.Context, chatID, externalID int64) (Stage, error) {
	if d == nil || d.users == nil || d.apps == nil {
		return StageIdle, errors.New("application dialog is not initialized")
	}
	if ctx == nil {
		return StageIdle, errors.New("context is required")
	}

	user, err := d.users.Lookup(ctx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return StageIdle, ErrNotRegistered
		}
		return StageIdle, fmt.Errorf("lookup applicant: %w", err)
	}

	d.mu.Lock()
	d.sessions[chatID] = &draft{userID: user.ID, stage: StageAwaitingPosition}
	d.mu.Unlock()

	d.logger.WithFields(logging.Fields{
		"event":   "dialog_started",
		"chat_id": chatID,
		"user_id": externalID,
	}).Debug("application dialog started")

	return StageAwaitingPosition, nil
}

// Active reports whether chatID has a dialog in progress.
func (d *Dialog) Active(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[chatID]
	return ok
}

// Cancel drops the session for chatID, reporting whether one existed.
func (d *Dialog) Cancel(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[chatID]
	delete(d.sessions, chatID)
	return ok
}

// Advance feeds one answer into the session for chatID. Position and region
// are stored verbatim but must not be empty.
func (d *Dialog) Advance(ctx context.Context, chatID int64, text string) (Step, error) {
	if ctx == nil {
		return Step{}, errors.New("context is required")
	}

	d.mu.Lock()
	session, ok := d.sessions[chatID]
	if !ok {
		d.mu.Unlock()
		return Step{Stage: StageIdle}, ErrNoDialog
	}

	switch session.stage {
	case StageAwaitingPosition:
		if text == "" {
			d.mu.Unlock()
			return Step{Stage: StageAwaitingPosition}, ErrEmptyAnswer
		}
		session.position = text
		session.stage = StageAwaitingSalary
		d.mu.Unlock()
		return Step{Stage: StageAwaitingSalary}, nil

	case StageAwaitingSalary:
		salary, err := ParseSalary(text)
		if err != nil {
			d.mu.Unlock()
			return Step{Stage: StageAwaitingSalary}, err
		}
		session.salary = salary
		session.stage = StageAwaitingRegion
		d.mu.Unlock()
		return Step{Stage: StageAwaitingRegion}, nil

	case StageAwaitingRegion:
		if text == "" {
			d.mu.Unlock()
			return Step{Stage: StageAwaitingRegion}, ErrEmptyAnswer
		}
		// Claim the session so a duplicate answer cannot persist twice.
		delete(d.sessions, chatID)
		d.mu.Unlock()
		return d.complete(ctx, chatID, session, text)

	default:
		delete(d.sessions, chatID)
		d.mu.Unlock()
		return Step{Stage: StageIdle}, ErrNoDialog
	}
}

func (d *Dialog) complete(ctx context.Context, chatID int64, session *draft, region string) (Step, error) {
	app, err := d.apps.CreateApplication(ctx, domain.Application{
		UserID:   session.userID,
		Position: session.position,
		Salary:   session.salary,
		Region:   region,
	})
	if err != nil {
		// Put the draft back so the applicant can resend the region.
		d.mu.Lock()
		if _, taken := d.sessions[chatID]; !taken {
			d.sessions[chatID] = session
		}
		d.mu.Unlock()
		return Step{Stage: StageAwaitingRegion}, fmt.Errorf("save application: %w", err)
	}

	d.logger.WithFields(logging.Fields{
		"event":          "application_saved",
		"chat_id":        chatID,
		"application_id": app.ID,
	}).Info("application saved")

	return Step{Stage: StageDone, Application: app}, nil
}

// ParseSalary accepts only ASCII digits, ignoring surrounding whitespace.
func ParseSalary(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, ErrInvalidSalary
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return 0, ErrInvalidSalary
		}
	}

	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, ErrInvalidSalary
	}
	return value, nil
}
