package store

import (
	"context"
	"errors"
	"fmt"
)

type userCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

type applicationCounter interface {
	CountApplications(ctx context.Context) (int64, error)
}

// Stats summarises stored record counts.
type Stats struct {
	Users        int64
	Applications int64
}

// StatsProvider exposes record counts for diagnostics without leaking the
// storage backend to callers.
type StatsProvider struct {
	users        userCounter
	applications applicationCounter
}

// NewStatsProvider constructs a StatsProvider backed by the provided stores.
func NewStatsProvider(users userCounter, applications applicationCounter) *StatsProvider {
	return &StatsProvider{
		users:        users,
		applications: applications,
	}
}

// Collect returns both counts, failing on the first error.
func (p *StatsProvider) Collect(ctx context.Context) (Stats, error) {
	if ctx == nil {
		return Stats{}, errors.New("context is required")
	}
	if p == nil || p.users == nil || p.applications == nil {
		return Stats{}, errors.New("stats provider is not initialized")
	}

	users, err := p.users.CountUsers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}

	applications, err := p.applications.CountApplications(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}

	return Stats{Users: users, Applications: applications}, nil
}
