// Package domain defines shared domain types, storage contracts, and the
// MongoDB-backed repositories.
package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrUserExists is returned when inserting a user whose external id is taken.
	ErrUserExists = errors.New("user already exists")
)

// UserStore persists registered users.
type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByExternalID(ctx context.Context, externalID int64) (User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ApplicationStore persists job applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app Application) (Application, error)
	ListApplications(ctx context.Context) ([]Application, error)
	DeleteAllApplications(ctx context.Context) (int64, error)
	CountApplications(ctx context.Context) (int64, error)
}
