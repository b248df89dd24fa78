package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/driveaway-backend/internal/orders"
	"github.com/angelmondragon/driveaway-backend/pkg/auth"
	"github.com/angelmondragon/driveaway-backend/pkg/config"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "driveaway", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.UserRole, storeID *uuid.UUID) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role, StoreID: storeID})
	require.NoError(t, err)
	return token, userID
}

func TestAuthRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth(testJWT, logger.Nop())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	rec := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenFromOtherIssuer(t *testing.T) {
	other := testJWT
	other.Issuer = "someone-else"
	token, _ := mintTestToken(t, other, enums.UserRoleCustomer, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSeedsActor(t *testing.T) {
	storeID := uuid.New()
	token, userID := mintTestToken(t, testJWT, enums.UserRoleOperator, &storeID)

	var captured orders.Actor
	handler := Auth(testJWT, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		captured = actor
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, enums.UserRoleOperator, captured.Role)
	require.NotNil(t, captured.StoreID)
	assert.Equal(t, storeID, *captured.StoreID)
	assert.False(t, captured.IsSystem())
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleOperator, enums.UserRoleAdmin)(okHandler())

	cases := []struct {
		name   string
		actor  *orders.Actor
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", ptr(orders.UserActor(uuid.New(), enums.UserRoleCustomer, nil)), http.StatusForbidden},
		{"operator", ptr(orders.UserActor(uuid.New(), enums.UserRoleOperator, nil)), http.StatusOK},
		{"admin", ptr(orders.UserActor(uuid.New(), enums.UserRoleAdmin, nil)), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tc.actor))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func ptr[T any](v T) *T { return &v }
