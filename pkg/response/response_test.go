package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"SafeCircle/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(errors.CodeInvalidGeofence))
	assert.Equal(t, http.StatusNotFound, Status(errors.CodeNotFound))
	assert.Equal(t, http.StatusNotImplemented, Status(errors.CodePlatformUnsupported))
	assert.Equal(t, http.StatusServiceUnavailable, Status(errors.CodeLocationUnavailable))
	assert.Equal(t, http.StatusInternalServerError, Status(12))
	assert.Equal(t, http.StatusInternalServerError, Status(49900))
}

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{errors.ErrNoContacts, http.StatusBadRequest, errors.CodeNoContacts},
		{errors.Wrap(errors.ErrNotFound.WithContext("id", "g1"), "toggle"), http.StatusNotFound, errors.CodeNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError, errors.CodeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)
		assert.Equal(t, tc.status, w.Code)
		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
		assert.NotEmpty(t, body.Message)
	}
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Success(c, "", gin.H{"armed": true})
	assert.JSONEq(t, `{"code":0,"message":"success","data":{"armed":true}}`, w.Body.String())
}
