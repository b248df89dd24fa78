package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
)

type bookingBody struct {
	VehicleID string `json:"vehicle_id" validate:"omitempty,uuid"`
	PackageID string `json:"package_id" validate:"omitempty,uuid"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest bookingBody
	err := DecodeJSONBody(post(`{"vehicle_id":"6f1c4e0a-8d4a-4c44-9b3c-0d6a1f0b5f11","start_date":"2026-05-12"}`), &dest)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-12", dest.StartDate)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	var dest bookingBody
	err := DecodeJSONBody(post(`{"vehicle_id":"nope","start_date":"12/05/2026"}`), &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid id", details["vehicle_id"])
	assert.Contains(t, details["start_date"], "2006-01-02")
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndEmptyBody(t *testing.T) {
	var dest bookingBody
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(post(`{"start_date":"2026-05-12","coupon":"X"}`), &dest), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(post(``), &dest), pkgerrors.CodeValidation))
}
