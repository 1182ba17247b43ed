// Package resume accepts résumé uploads, stores them locally, and notifies HR.
package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/domain"
	"hr_assistant_bot/internal/logging"
)

const defaultNotifyTimeout = time.Minute

// AllowedExtensions lists accepted file extensions, lowercase and dot-prefixed.
var AllowedExtensions = []string{".pdf", ".docx"}

// ErrUnsupportedFormat is returned for files outside AllowedExtensions.
var ErrUnsupportedFormat = errors.New("unsupported résumé format")

// Fetcher streams the bytes of a transport-side file.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Notifier tells HR about a stored résumé.
type Notifier interface {
	NotifyResume(ctx context.Context, resume domain.Resume) error
}

// Upload describes an incoming document.
type Upload struct {
	FileID     string
	FileName   string
	ExternalID int64
	Handle     string
}

// Intake validates, stores, and announces résumé uploads.
type Intake struct {
	dir           string
	fetcher       Fetcher
	notifier      Notifier
	logger        *logrus.Entry
	notifyTimeout time.Duration

	pending sync.WaitGroup
}

// NewIntake constructs an Intake saving files under dir.
func NewIntake(dir string, fetcher Fetcher, notifier Notifier, logger *logrus.Entry) *Intake {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Intake{
		dir:           dir,
		fetcher:       fetcher,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
	}
}

// Allowed reports whether name carries an accepted extension, ignoring case,
// after a non-empty stem. Directory components are ignored.
func Allowed(name string) bool {
	base := filepath.Base(strings.TrimSpace(name))
	ext := filepath.Ext(base)
	if strings.TrimSpace(strings.TrimSuffix(base, ext)) == "" {
		return false
	}

	ext = strings.ToLower(ext)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Submit saves the upload under its original name, overwriting any previous
// file with that name, then sends the HR notification in the background.
// onNotified, when set, receives the notification result (nil on success);
// the saved file is kept either way.
func (in *Intake) Submit(ctx context.Context, upload Upload, onNotified func(error)) (domain.Resume, error) {
	if in == nil || in.fetcher == nil || in.notifier == nil {
		return domain.Resume{}, errors.New("resume intake is not initialized")
	}
	if ctx == nil {
		return domain.Resume{}, errors.New("context is required")
	}

	name := filepath.Base(strings.TrimSpace(upload.FileName))
	if name == "." || name == string(filepath.Separator) || !Allowed(name) {
		return domain.Resume{}, ErrUnsupportedFormat
	}

	path, err := in.save(ctx, upload.FileID, name)
	if err != nil {
		return domain.Resume{}, err
	}

	saved := domain.Resume{
		FileName:   name,
		Path:       path,
		ExternalID: upload.ExternalID,
		Handle:     upload.Handle,
	}

	in.logger.WithFields(logging.Fields{
		"event":     "resume_saved",
		"user_id":   upload.ExternalID,
		"file_name": name,
		"path":      path,
	}).Info("résumé saved")

	in.pending.Add(1)
	go in.notify(context.WithoutCancel(ctx), saved, onNotified)

	return saved, nil
}

// Wait blocks until every background notification has finished.
func (in *Intake) Wait() {
	in.pending.Wait()
}

func (in *Intake) save(ctx context.Context, fileID, name string) (string, error) {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return "", fmt.Errorf("create resume directory: %w", err)
	}

	body, err := in.fetcher.Fetch(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("download resume: %w", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(in.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write resume: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close resume: %w", err)
	}

	path := filepath.Join(in.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("store resume: %w", err)
	}

	return path, nil
}

func (in *Intake) notify(ctx context.Context, saved domain.Resume, onNotified func(error)) {
	defer in.pending.Done()

	notifyCtx, cancel := context.WithTimeout(ctx, in.notifyTimeout)
	defer cancel()

	err := in.notifier.NotifyResume(notifyCtx, saved)
	if onNotified != nil {
		defer onNotified(err)
	}

	if err != nil {
		in.logger.WithFields(logging.Fields{
			"event":     "resume_notify_error",
			"user_id":   saved.ExternalID,
			"file_name": saved.FileName,
		}).WithError(err).Error("failed to notify HR about résumé")
		return
	}

	in.logger.WithFields(logging.Fields{
		"event":     "resume_notified",
		"user_id":   saved.ExternalID,
		"file_name": saved.FileName,
	}).Info("HR notified about résumé")
}
