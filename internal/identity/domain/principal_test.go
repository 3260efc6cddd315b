package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/allisson/consentbroker/internal/errors"
)

func TestPrincipal_HasAudience(t *testing.T) {
	principal := &Principal{Subject: "alice", Audience: []string{"service-a", "banking-service"}}

	assert.True(t, principal.HasAudience("banking-service"))
	assert.False(t, principal.HasAudience("service-c"))
	assert.False(t, (&Principal{}).HasAudience("service-a"))
}

func TestIdentityErrors(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidToken, errors.ErrUnauthorized)
	assert.ErrorIs(t, ErrMissingSubject, errors.ErrUnauthorized)
	assert.ErrorIs(t, ErrInvalidAudience, errors.ErrForbidden)
}
