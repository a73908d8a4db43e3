package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	var called bool
	reg.Register("starling", func(ctx context.Context, b Binding) (Provider, error) {
		called = true
		return nil, nil
	})
	reg.Bind("Starling Personal", "starling")
	reg.Bind("Monzo", "monzo")

	f, err := reg.Lookup("Starling Personal")
	require.NoError(t, err)
	_, _ = f(context.Background(), Binding{})
	assert.True(t, called)

	_, err = reg.Lookup("Barclays")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = reg.Lookup("Monzo")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Equal(t, []string{"Monzo", "Starling Personal"}, reg.Banks())

	kind, ok := reg.Kind("Starling Personal")
	assert.True(t, ok)
	assert.Equal(t, "starling", kind)
	_, ok = reg.Kind("Barclays")
	assert.False(t, ok)
}

func TestProviderErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("sync: %w", &ProviderError{Kind: ErrProviderUnavailable, Bank: "Starling Personal", Op: "balance", Err: cause})

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrProviderAuth)
	assert.Contains(t, err.Error(), "Starling Personal balance")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Starling Personal", pe.Bank)
}

func TestKindForStatus(t *testing.T) {
	cases := map[int]error{
		401: ErrProviderAuth,
		403: ErrProviderAuth,
		429: ErrProviderUnavailable,
		500: ErrProviderUnavailable,
		503: ErrProviderUnavailable,
		400: ErrProviderSchema,
		404: ErrProviderSchema,
	}
	for status, want := range cases {
		assert.Equal(t, want, KindForStatus(status), status)
	}
}
