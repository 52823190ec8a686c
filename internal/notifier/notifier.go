package notifier

import (
	"context"

	"user-tracker/pkg/models"
)

// Notifier interface defines the contract for notification services
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}
