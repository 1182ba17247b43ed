package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/access"
	"hr_assistant_bot/internal/domain"
	"hr_assistant_bot/internal/logging"
)

type authorizer interface {
	Require(handle string, capability access.Capability) error
}

// Catalog lists stored applications and clears them for privileged callers.
type Catalog struct {
	apps   domain.ApplicationStore
	policy authorizer
	logger *logrus.Entry
}

// NewCatalog constructs a Catalog.
func NewCatalog(apps domain.ApplicationStore, policy authorizer, logger *logrus.Entry) *Catalog {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Catalog{
		apps:   apps,
		policy: policy,
		logger: logger,
	}
}

// List returns every stored application.
func (c *Catalog) List(ctx context.Context) ([]domain.Application, error) {
	if c == nil || c.apps == nil {
		return nil, errors.New("application catalog is not initialized")
	}

	apps, err := c.apps.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Clear deletes all applications when handle holds the clear capability.
// Other callers get access.ErrForbidden and nothing is touched.
func (c *Catalog) Clear(ctx context.Context, handle string) (int64, error) {
	if c == nil || c.apps == nil || c.policy == nil {
		return 0, errors.New("application catalog is not initialized")
	}

	if err := c.policy.Require(handle, access.ClearApplications); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":  "clear_denied",
			"handle": handle,
		}).Warn("clear applications denied")
		return 0, err
	}

	deleted, err := c.apps.DeleteAllApplications(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear applications: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event":   "applications_cleared",
		"handle":  handle,
		"deleted": deleted,
	}).Info("applications cleared")

	return deleted, nil
}

// FormatLine renders one application as "<position> | <salary> <unit> | <region>".
func FormatLine(app domain.Application, currencyUnit string) string {
	return fmt.Sprintf("%s | %d %s | %s", app.Position, app.Salary, currencyUnit, app.Region)
}
