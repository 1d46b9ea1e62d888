// Package testutil holds the request builders and response assertions shared by
// the land record and land transfer handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "landadmin/pkg/domain-errors"
)

// ErrorBody is the decoded form of the {"error","error_description"} envelope.
// Description is nil when the field was omitted, as it is for internal errors.
type ErrorBody struct {
	Code        string  `json:"error"`
	Description *string `json:"error_description"`
}

// NewRequest builds a bodiless request.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest marshals body and sends it as application/json.
// A nil body still carries the content type, which the JSON routes require.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return NewRequestWithBody(t, method, path, "")
	}
	return NewRequestWithBody(t, method, path, MustMarshal(t, body))
}

// NewRequestWithBody sends a raw JSON string, for malformed payloads.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req on handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// MustMarshal returns v as a JSON string.
func MustMarshal(t *testing.T, v any) string {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err, "failed to marshal value")
	return string(body)
}

// DecodeJSON decodes the response body into T. The recorder body is left
// intact so several assertions can read the same response.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&out), "failed to decode response: %s", rr.Body.String())
	return &out
}

// DecodeError decodes the error envelope.
func DecodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	return *DecodeJSON[ErrorBody](t, rr)
}

// AssertStatus checks the response status code.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code, body: %s", rr.Body.String())
}

// AssertStatusOK checks for 200.
func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertError checks the status and the error code of an error envelope.
func AssertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code dErrors.Code) {
	t.Helper()
	AssertStatus(t, rr, status)
	assert.Equal(t, string(code), DecodeError(t, rr).Code, "unexpected error code")
}

// AssertErrorDescription is AssertError plus the client-facing message.
func AssertErrorDescription(t *testing.T, rr *httptest.ResponseRecorder, status int, code dErrors.Code, description string) {
	t.Helper()
	AssertError(t, rr, status, code)
	body := DecodeError(t, rr)
	if assert.NotNil(t, body.Description, "error_description missing") {
		assert.Equal(t, description, *body.Description)
	}
}

// AssertInternalHidden checks for a 500 whose description was withheld.
func AssertInternalHidden(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertError(t, rr, http.StatusInternalServerError, dErrors.CodeInternal)
	assert.Nil(t, DecodeError(t, rr).Description, "internal error leaked its description")
}

// AssertJSONContains checks one top-level field of a JSON object response.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	obj := *DecodeJSON[map[string]any](t, rr)
	assert.Equal(t, expected, obj[key], "unexpected value for key %q", key)
}

// AssertJSONHasKey checks that a top-level field is present, whatever its value.
func AssertJSONHasKey(t *testing.T, rr *httptest.ResponseRecorder, key string) {
	t.Helper()
	obj := *DecodeJSON[map[string]any](t, rr)
	assert.Contains(t, obj, key, "expected key %q in response", key)
}
