package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slugPayload struct {
	Slug string `validate:"required,slug"`
}

func TestSlugRule(t *testing.T) {
	v := New()

	valid := []string{"users", "users-view", "a-b-c", "user2"}
	for _, slug := range valid {
		assert.Nil(t, v.Struct(slugPayload{Slug: slug}), "expected %q to be valid", slug)
	}

	invalid := []string{"Users", "users view", "users--view", "-users", "users-", "über"}
	for _, slug := range invalid {
		assert.NotNil(t, v.Struct(slugPayload{Slug: slug}), "expected %q to be invalid", slug)
	}
}

type registerPayload struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestStructFieldErrors(t *testing.T) {
	v := New()

	fieldErrors := v.Struct(registerPayload{Email: "not-an-email", Password: "short"})
	require.Len(t, fieldErrors, 2)
	assert.Equal(t, "email", fieldErrors[0].Field)
	assert.Contains(t, fieldErrors[0].Message, "valid email")
	assert.Equal(t, "password", fieldErrors[1].Field)
	assert.Contains(t, fieldErrors[1].Message, "at least 8")
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"User Management":   "user-management",
		"  Spaced  Out  ":   "spaced-out",
		"Already-Slugged":   "already-slugged",
		"Symbols & Things!": "symbols-things",
		"MixedCase":         "mixedcase",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}
