package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	store "starling-server/src/db/sql"
	"starling-server/src/dispatcher"
	"starling-server/src/logger"
	"starling-server/src/middleware"
	"starling-server/src/providers"
)

// StatusFor maps an error to the HTTP status returned for it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dispatcher.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, dispatcher.ErrAccountNotTracked):
		return http.StatusNotFound
	case errors.Is(err, providers.ErrProviderAuth):
		return http.StatusBadGateway
	case errors.Is(err, providers.ErrProviderUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	middleware.WriteError(w, status, err.Error())
}

// setFailedAccounts lists the accounts that failed within a partially
// successful batch.
func setFailedAccounts(w http.ResponseWriter, failures []dispatcher.AccountError) {
	if len(failures) == 0 {
		return
	}
	ids := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.AccountUUID.String()
	}
	w.Header().Set("X-Failed-Accounts", strings.Join(ids, ","))
}
