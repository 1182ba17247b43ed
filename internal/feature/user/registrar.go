// Package user provides registration of Telegram users.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/domain"
	"hr_assistant_bot/internal/logging"
)

// Profile carries the identity fields supplied by the transport.
type Profile struct {
	ExternalID int64
	FirstName  string
	LastName   string
	Handle     string
}

// Registrar creates user records once per external identity.
type Registrar struct {
	users  domain.UserStore
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided user store.
func NewRegistrar(users domain.UserStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// Register inserts the user unless one with the same external id exists.
// It reports whether a new record was created; existing users are returned
// untouched.
func (r *Registrar) Register(ctx context.Context, profile Profile) (domain.User, bool, error) {
	if r == nil || r.users == nil {
		return domain.User{}, false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return domain.User{}, false, errors.New("context is required")
	}
	if profile.ExternalID == 0 {
		return domain.User{}, false, errors.New("external id is required")
	}

	existing, err := r.users.GetUserByExternalID(ctx, profile.ExternalID)
	switch {
	case err == nil:
		r.logger.WithFields(logging.Fields{
			"event":   "user_already_registered",
			"user_id": profile.ExternalID,
		}).Debug("user already registered")
		return existing, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	created, err := r.users.CreateUser(ctx, domain.User{
		ExternalID: profile.ExternalID,
		FirstName:  strings.TrimSpace(profile.FirstName),
		LastName:   strings.TrimSpace(profile.LastName),
		Handle:     strings.TrimPrefix(strings.TrimSpace(profile.Handle), "@"),
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same identity.
		if errors.Is(err, domain.ErrUserExists) {
			existing, lookupErr := r.users.GetUserByExternalID(ctx, profile.ExternalID)
			if lookupErr != nil {
				return domain.User{}, false, fmt.Errorf("lookup user: %w", lookupErr)
			}
			return existing, false, nil
		}
		return domain.User{}, false, fmt.Errorf("register user: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_registered",
		"user_id": profile.ExternalID,
	}).Info("registered new user")

	return created, true, nil
}

// Lookup returns the registered user for externalID or domain.ErrNotFound.
func (r *Registrar) Lookup(ctx context.Context, externalID int64) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user registrar is not initialized")
	}
	return r.users.GetUserByExternalID(ctx, externalID)
}
