package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "Bug report not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"message":"Bug report not found"}`, rec.Body.String())
}

func TestJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]interface{}{"totalBounty": math.Inf(1)})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Error encoding response", body["message"])
	assert.NotEmpty(t, body["error"])
}

func TestServerError(t *testing.T) {
	cause := errors.Wrap(errors.New("disk I/O error"), "insert bug report")
	req := httptest.NewRequest(http.MethodPost, "/api/bugs", nil)

	for _, dev := range []bool{false, true} {
		rec := httptest.NewRecorder()
		ServerError(rec, req, zaptest.NewLogger(t), dev, "Error submitting bug report", cause)
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Error submitting bug report", body["message"])
		assert.Equal(t, "insert bug report: disk I/O error", body["error"])
		_, hasStack := body["stack"]
		assert.Equal(t, dev, hasStack)
	}
}
