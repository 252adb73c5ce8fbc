package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redsponsor/redsponsor_backend/controllers"
	"github.com/redsponsor/redsponsor_backend/middleware"
	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
)

func issueCodeContext(e *echo.Echo, userID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/referral/code", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.JwtCustomClaims{UserID: userID}))
	return c, rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.Response {
	t.Helper()
	var resp models.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func referralCodeFrom(t *testing.T, resp models.Response) string {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "response data should be an object")
	code, ok := data["referralCode"].(string)
	require.True(t, ok, "response data should carry referralCode")
	return code
}

func TestIssueReferralCode_CreatesAndPersists(t *testing.T) {
	store := repositories.NewMemoryStore()
	acct := store.SeedAccount(&models.Account{Handle: "alice"})
	controller := controllers.NewReferralController(store)
	e := echo.New()

	c, rec := issueCodeContext(e, acct.ID.Hex())
	require.NoError(t, controller.IssueReferralCode(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	code := referralCodeFrom(t, decodeResponse(t, rec))
	assert.True(t, strings.HasPrefix(code, "MBR-"), code)

	stored, err := store.Account(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, code, stored.ReferralCode)
}

func TestIssueReferralCode_IsIdempotent(t *testing.T) {
	store := repositories.NewMemoryStore()
	acct := store.SeedAccount(&models.Account{Handle: "alice", ReferralCode: "MBR-AAAAAA"})
	controller := controllers.NewReferralController(store)
	e := echo.New()

	c, rec := issueCodeContext(e, acct.ID.Hex())
	require.NoError(t, controller.IssueReferralCode(c))
	require.Equal(t, http.StatusOK, rec.Code, "an existing code is returned, not replaced")
	assert.Equal(t, "MBR-AAAAAA", referralCodeFrom(t, decodeResponse(t, rec)))

	stored, err := store.Account(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "MBR-AAAAAA", stored.ReferralCode)
}

func TestIssueReferralCode_RequiresClaims(t *testing.T) {
	store := repositories.NewMemoryStore()
	controller := controllers.NewReferralController(store)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/referral/code", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, controller.IssueReferralCode(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
