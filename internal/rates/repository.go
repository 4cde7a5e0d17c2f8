package rates

import (
	"context"

	"github.com/subtrack-app/subtrack/internal/domain"
)

// Repository persists keypair, feature state and rates.
type Repository interface {
	// GetKeyPair returns the persisted PEM keypair. ErrNoKeyPair when absent.
	GetKeyPair(ctx context.Context) (publicPEM, privatePEM string, err error)
	SaveKeyPair(ctx context.Context, publicPEM, privatePEM string) error

	// GetState returns the feature state, a zero-value state when none exists.
	GetState(ctx context.Context) (*domain.ExchangeRateState, error)
	SaveState(ctx context.Context, state *domain.ExchangeRateState) error

	UpsertRates(ctx context.Context, rates []domain.ExchangeRate) error
	ListRates(ctx context.Context) ([]domain.ExchangeRate, error)

	// ListTrackedCurrencies returns the distinct currencies of all
	// subscriptions. Only these are worth refreshing.
	ListTrackedCurrencies(ctx context.Context) ([]string, error)
}

// SettingsSource supplies the tenant timezone driving slot boundaries.
type SettingsSource interface {
	GetSettings(ctx context.Context) (*domain.NotificationSettings, error)
}
