package refresh

import (
	"context"
	"errors"
	"time"

	"starling-server/src/dispatcher"
	"starling-server/src/models"
	"starling-server/src/providers"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Syncer interface {
	Reload(ctx context.Context) error
	SyncTransactionsAllAccounts(ctx context.Context, w dispatcher.Window) (dispatcher.SyncReport, error)
	SyncTransactionsForAccount(ctx context.Context, account uuid.UUID, w dispatcher.Window) ([]models.Transaction, bool, error)
}

// Refresher periodically syncs every account with the default window.
// Accounts whose provider was unavailable are retried with backoff.
type Refresher struct {
	syncer     Syncer
	interval   time.Duration
	log        zerolog.Logger
	newBackOff func() backoff.BackOff
}

// Result summarises one refresh pass.
type Result struct {
	Transactions int
	Failed       []dispatcher.AccountError
}

func New(syncer Syncer, interval, maxRetryTime time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		syncer:   syncer,
		interval: interval,
		log:      log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxElapsedTime = maxRetryTime
			return b
		},
	}
}

// Run refreshes once immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Msg("Starting refresher")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("Refresh failed")
		}
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Refresher stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Refresher) RefreshOnce(ctx context.Context) (Result, error) {
	if err := r.syncer.Reload(ctx); err != nil {
		return Result{}, err
	}
	report, err := r.syncer.SyncTransactionsAllAccounts(ctx, dispatcher.Window{})
	if err != nil {
		return Result{}, err
	}

	result := Result{Transactions: len(report.Transactions)}
	for _, failure := range report.Errors {
		if !errors.Is(failure.Err, providers.ErrProviderUnavailable) {
			result.Failed = append(result.Failed, failure)
			continue
		}
		n, err := r.retry(ctx, failure.AccountUUID)
		if err != nil {
			failure.Err = err
			result.Failed = append(result.Failed, failure)
			continue
		}
		result.Transactions += n
	}

	ev := r.log.Info()
	if len(result.Failed) > 0 {
		ev = r.log.Warn()
	}
	ev.Int("transactions", result.Transactions).Int("failed", len(result.Failed)).Msg("Refresh complete")
	return result, nil
}

func (r *Refresher) retry(ctx context.Context, account uuid.UUID) (int, error) {
	var synced int
	op := func() error {
		txns, _, err := r.syncer.SyncTransactionsForAccount(ctx, account, dispatcher.Window{})
		if err == nil {
			synced = len(txns)
			return nil
		}
		if errors.Is(err, providers.ErrProviderUnavailable) {
			r.log.Debug().Err(err).Str("account", account.String()).Msg("Provider unavailable, retrying")
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx))
	return synced, err
}
