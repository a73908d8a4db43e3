package util

import (
	"testing"
	"time"

	"starling-server/src/dispatcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBankName(t *testing.T) {
	assert.True(t, ValidateBankName("Starling Personal"))
	assert.True(t, ValidateBankName("chase-checking_2"))
	assert.False(t, ValidateBankName(""))
	assert.False(t, ValidateBankName(" leading"))
	assert.False(t, ValidateBankName("bank:name"))
}

func TestValidateAuthToken(t *testing.T) {
	assert.True(t, ValidateAuthToken("eyJhbGciOi.abc"))
	assert.False(t, ValidateAuthToken(""))
	assert.False(t, ValidateAuthToken("token\n"))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("01/03/2024")
	assert.ErrorIs(t, err, dispatcher.ErrInvalidWindow)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("", "")
	require.NoError(t, err)
	assert.True(t, w.Start.IsZero())
	assert.True(t, w.End.IsZero())

	w, err = ParseWindow("2024-03-01", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.True(t, w.End.IsZero())

	_, err = ParseWindow("2024-03-01", "tomorrow")
	assert.ErrorIs(t, err, dispatcher.ErrInvalidWindow)
}
