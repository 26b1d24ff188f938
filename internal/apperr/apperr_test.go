package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_UnwrapsChain(t *testing.T) {
	base := New(KindNotFound, "customer_not_found", "customer not found")
	wrapped := fmt.Errorf("lookup: %w", base)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindUnauthenticated))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindForbidden))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindUpstreamValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindInvalidArgument))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindPersistence))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Kind("bogus")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(KindPersistence, "internal_error", "save failed", errors.New("disk full"))
	assert.Equal(t, "save failed: disk full", err.Error())
	assert.ErrorIs(t, err, err.Err)
}
