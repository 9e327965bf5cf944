package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method POST not allowed for /health")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body["error"])
	assert.Equal(t, "Method POST not allowed for /health", body["message"])
}

func TestWriteJSONDoesNotEscapeHTML(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rr, map[string]string{"path": "/a?b=<c>&d"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "{\"path\":\"/a?b=<c>&d\"}\n", rr.Body.String())
}
