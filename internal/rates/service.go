package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrack-app/subtrack/internal/domain"
)

// Slot hours in tenant-local time. Each slot fires at most once per local day.
const (
	slotMorning = 0
	slotNoon    = 12
)

// RateFetcher retrieves USD-based conversion rates with the given API key.
type RateFetcher interface {
	FetchLatest(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error)
}

// Service owns the exchange-rate feature: credential intake and the
// twice-daily refresh. Tick is meant to be driven by a short-interval job;
// the slot bookkeeping decides whether a tick actually refreshes.
type Service struct {
	repo     Repository
	settings SettingsSource
	keys     *KeyStore
	provider RateFetcher
	cache    *Cache // optional

	now     func() time.Time
	running atomic.Bool
}

// NewService creates the exchange-rate service. cache may be nil.
func NewService(repo Repository, settings SettingsSource, keys *KeyStore, provider RateFetcher, cache *Cache) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		keys:     keys,
		provider: provider,
		cache:    cache,
		now:      time.Now,
	}
}

// SubmitKey decrypts the submitted ciphertext, runs the one-time connectivity
// test against the provider, and persists the credential on success. The
// ciphertext, never the plaintext, is what gets stored.
func (s *Service) SubmitKey(ctx context.Context, encryptedKey string) error {
	apiKey, err := s.keys.Decrypt(encryptedKey)
	if err != nil {
		recordKeySubmission("decrypt_failed")
		return err
	}

	if _, err := s.provider.FetchLatest(ctx, apiKey); err != nil {
		recordKeySubmission("test_failed")
		return fmt.Errorf("%w: %v", ErrCredentialRejected, err)
	}

	state, err := s.repo.GetState(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	now := s.now()
	state.Enabled = true
	state.EncryptedKey = encryptedKey
	state.LastTestedAt = &now

	if err := s.repo.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	recordKeySubmission("ok")
	slog.Info("exchange rate credential accepted")
	return nil
}

// Tick evaluates the current slot and refreshes rates when the slot has not
// run today in tenant-local time. Failures leave the slot unmarked so the
// next tick retries.
func (s *Service) Tick(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		slog.Debug("rates tick already in flight, skipping")
		return nil
	}
	defer s.running.Store(false)

	state, err := s.repo.GetState(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !state.Enabled || !state.Tested() {
		return nil
	}

	loc := s.location(ctx)
	local := s.now().In(loc)

	slot := slotMorning
	lastRun := state.LastRunAt0
	if local.Hour() >= slotNoon {
		slot = slotNoon
		lastRun = state.LastRunAt12
	}

	if lastRun != nil && sameLocalDay(lastRun.In(loc), local) {
		return nil
	}

	if err := s.refresh(ctx, state, slot); err != nil {
		recordRefresh("failed")
		return fmt.Errorf("refresh slot %d: %w", slot, err)
	}

	recordRefresh("ok")
	return nil
}

func (s *Service) location(ctx context.Context) *time.Location {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		slog.Warn("load settings for timezone, using UTC", "error", err)
		return time.UTC
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		slog.Warn("invalid timezone, using UTC", "timezone", settings.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func (s *Service) refresh(ctx context.Context, state *domain.ExchangeRateState, slot int) error {
	apiKey, err := s.keys.Decrypt(state.EncryptedKey)
	if err != nil {
		return err
	}

	fetched, err := s.provider.FetchLatest(ctx, apiKey)
	if err != nil {
		return err
	}

	tracked, err := s.repo.ListTrackedCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("list tracked currencies: %w", err)
	}

	now := s.now()
	rates := make([]domain.ExchangeRate, 0, len(tracked)+1)
	rates = append(rates, domain.ExchangeRate{Code: "USD", Rate: decimal.NewFromInt(1), UpdatedAt: now})
	for _, code := range tracked {
		if code == "USD" {
			continue
		}
		rate, ok := fetched[code]
		if !ok {
			slog.Warn("provider has no rate for tracked currency", "currency", code)
			continue
		}
		rates = append(rates, domain.ExchangeRate{Code: code, Rate: rate, UpdatedAt: now})
	}

	if err := s.repo.UpsertRates(ctx, rates); err != nil {
		return fmt.Errorf("persist rates: %w", err)
	}

	state.LastRatesUpdate = &now
	switch slot {
	case slotNoon:
		state.LastRunAt12 = &now
	default:
		state.LastRunAt0 = &now
	}
	if err := s.repo.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, rates)
	}

	slog.Info("exchange rates refreshed", "slot", slot, "currencies", len(rates))
	return nil
}

// LatestRates serves the cached snapshot, falling back to postgres.
func (s *Service) LatestRates(ctx context.Context) ([]domain.ExchangeRate, error) {
	if s.cache != nil {
		if rates, ok := s.cache.Get(ctx); ok {
			return rates, nil
		}
	}

	rates, err := s.repo.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	if s.cache != nil && len(rates) > 0 {
		s.cache.Set(ctx, rates)
	}
	return rates, nil
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
