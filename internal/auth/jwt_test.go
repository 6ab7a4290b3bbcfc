package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findthem/backend/internal/models"
)

func testUser() *models.User {
	org := uuid.New()
	return &models.User{ID: uuid.New(), Email: "a@b.org", Role: models.RoleNGOAdmin, OrganizationID: &org}
}

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 168)
	u := testUser()

	token, err := svc.Generate(u)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "ngo_admin", claims.Role)
	assert.Equal(t, u.OrganizationID.String(), claims.OrganizationID)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", 168)
	token, err := svc.generateAt(testUser(), time.Now().Add(-8*24*time.Hour))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	token, err := NewJWTService("other", 1).Generate(testUser())
	require.NoError(t, err)

	_, err = NewJWTService("secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMalformed(t *testing.T) {
	_, err := NewJWTService("secret", 1).Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
