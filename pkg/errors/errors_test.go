package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"no text", ErrNoExtractableText, http.StatusUnprocessableEntity},
		{"store", Unavailable("postings", errors.New("dial tcp: refused")), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"publish", fmt.Errorf("publishing deindex event: %w: %w", ErrPublishFailed, errors.New("broker down")), http.StatusServiceUnavailable},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	err := Unavailable("fetch", context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	again := Unavailable("outer", err)
	assert.Same(t, err, again)
	assert.NoError(t, Unavailable("noop", nil))
}

func TestReasonHidesStorageDetails(t *testing.T) {
	err := Unavailable("postings", errors.New("pq: password authentication failed"))
	assert.Equal(t, "index temporarily unavailable", Reason(err))
	assert.Equal(t, "internal error", Reason(errors.New("pq: relation does not exist")))
}

func TestReasonUsesAppErrorMessage(t *testing.T) {
	err := fmt.Errorf("upload: %w", New(ErrInvalidInput, 400, "only .pdf and .txt files are accepted"))
	assert.Equal(t, "only .pdf and .txt files are accepted", Reason(err))
}
