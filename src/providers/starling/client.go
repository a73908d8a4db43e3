package starling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"starling-server/src/providers"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.starlingbank.com/api/v2"
	userAgent      = "starling-server"
	// feed endpoints expect millisecond precision with a literal Z
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Limiter    *rate.Limiter
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// client issues authenticated GETs for one bank credential.
type client struct {
	baseURL string
	token   string
	bank    string
	account uuid.UUID
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newClient(opts Options, bank, token string, account uuid.UUID) *client {
	opts = opts.withDefaults()
	return &client{
		baseURL: opts.BaseURL,
		token:   token,
		bank:    bank,
		account: account,
		http:    opts.HTTPClient,
		limiter: opts.Limiter,
		log:     opts.Logger,
	}
}

func (c *client) fail(kind error, op string, status int, payload []byte, err error) *providers.ProviderError {
	return &providers.ProviderError{
		Kind:    kind,
		Bank:    c.bank,
		Account: c.account,
		Op:      op,
		Status:  status,
		Payload: payload,
		Err:     err,
	}
}

// get returns the body of a 2xx response or a classified *ProviderError.
func (c *client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(providers.ErrProviderUnavailable, op, 0, nil, err)
		}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(providers.ErrProviderUnavailable, op, 0, nil, transportError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(providers.ErrProviderUnavailable, op, resp.StatusCode, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := providers.KindForStatus(resp.StatusCode)
		pe := c.fail(kind, op, resp.StatusCode, body, nil)
		if kind == providers.ErrProviderSchema {
			c.log.Error().Str("bank", c.bank).Str("op", op).Int("status", resp.StatusCode).
				Bytes("payload", body).Msg("Starling rejected request")
		}
		return nil, pe
	}
	return body, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", err)
	}
	return err
}
