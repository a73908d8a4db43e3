package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"starling-server/src/api"
	"starling-server/src/db"
	"starling-server/src/providers/plaid"
	"starling-server/src/refresh"
)

const (
	shutdownTimeout = 10 * time.Second
	maxRetryTime    = 5 * time.Minute
	webhookTimeout  = 5 * time.Minute
)

func (c *CLI) server(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("server", c.Err)
	port := fs.String("port", app.Config.Port, "port to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	balances, err := db.NewBalanceCache(app.Config.Sync.BalanceCacheTTL)
	if err != nil {
		return err
	}
	defer balances.Close()

	d, err := app.dispatcher(ctx, balances)
	if err != nil {
		return err
	}
	refresher := refresh.New(d, app.Config.Sync.RefreshInterval, maxRetryTime, app.Log)

	opts := api.RouterOptions{
		Logger:         app.Log,
		JWTSecret:      app.Config.JWTSecret,
		ReadOnly:       app.Config.ReadOnly,
		AllowedOrigins: app.Config.CORSAllowedOrigins,
		BalanceCache:   balances,
	}
	if app.Plaid != nil {
		verifier, err := plaid.NewVerifier(plaid.APIKeyFetcher(app.Plaid))
		if err != nil {
			return err
		}
		defer verifier.Close()
		opts.Verifier = verifier
		opts.Refresh = func(reqCtx context.Context) {
			go func() {
				bg, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), webhookTimeout)
				defer cancel()
				if _, err := refresher.RefreshOnce(bg); err != nil {
					app.Log.Error().Err(err).Msg("Webhook refresh failed")
				}
			}()
		}
	}

	if app.Config.Sync.RefreshInterval > 0 {
		go refresher.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           api.NewRouter(d, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log.Info().Str("port", *port).Bool("read_only", app.Config.ReadOnly).Msg("API server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	app.Log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
