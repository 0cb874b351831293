package request

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireID_Valid(t *testing.T) {
	result, err := RequireID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", result)
}

func TestRequireID_Empty(t *testing.T) {
	_, err := RequireID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required ID")
}

func TestRequireServiceID_Valid(t *testing.T) {
	id, err := RequireServiceID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestRequireServiceID_NotANumber(t *testing.T) {
	_, err := RequireServiceID("drive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid service ID")
}

func TestRequireServiceID_Empty(t *testing.T) {
	_, err := RequireServiceID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required ID")
}

// testDecodePayload is a helper struct used only for testing Decode.
type testDecodePayload struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestDecode_ValidJSON(t *testing.T) {
	body := `{"name":"alice","email":"alice@example.com"}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload testDecodePayload
	err = Decode(r, &payload)
	require.NoError(t, err)
	assert.Equal(t, "alice", payload.Name)
	assert.Equal(t, "alice@example.com", payload.Email)
}

func TestDecode_InvalidJSON(t *testing.T) {
	body := `{not valid json}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload testDecodePayload
	err = Decode(r, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecode_ValidationFails(t *testing.T) {
	// Missing the required "name" field.
	body := `{"email":"alice@example.com"}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload testDecodePayload
	err = Decode(r, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestSlugValidation_Valid(t *testing.T) {
	validSlugs := []string{"suite-territoriale", "test123", "a", "abc-def-123", "z0"}
	for _, slug := range validSlugs {
		t.Run(slug, func(t *testing.T) {
			assert.True(t, nameRegex.MatchString(slug), "expected slug %q to be valid", slug)
		})
	}
}

func TestSlugValidation_Invalid(t *testing.T) {
	invalidSlugs := []string{
		"My Site",  // spaces and uppercase
		"test@123", // special character
		"",         // empty
		strings.Repeat("a", 64), // too long (max 63 chars)
		"1starts-digit", // must start with lowercase letter
		"-leading-dash", // must start with lowercase letter
	}
	for _, slug := range invalidSlugs {
		t.Run(slug, func(t *testing.T) {
			assert.False(t, nameRegex.MatchString(slug), "expected slug %q to be invalid", slug)
		})
	}
}

func TestSIRETValidation(t *testing.T) {
	assert.True(t, siretRegex.MatchString("13002526500013"))
	assert.False(t, siretRegex.MatchString("130025265"))      // SIREN length
	assert.False(t, siretRegex.MatchString("1300252650001a")) // non-digit
	assert.False(t, siretRegex.MatchString(""))
}

func TestInseeValidation(t *testing.T) {
	assert.True(t, inseeRegex.MatchString("64456"))
	assert.False(t, inseeRegex.MatchString("644"))
	assert.False(t, inseeRegex.MatchString("64456789012345"))
}
