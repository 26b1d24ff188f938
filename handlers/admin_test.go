package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylevidrine/portal/internal/audit"
)

func TestDeleteCustomerThenGetIsNotFound(t *testing.T) {
	f := newFixture(t)
	id := f.loginWorkspace()

	w := f.api(http.MethodDelete, "/admin/customer/"+id)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["deleted"])
	assert.Equal(t, "Ann@Example.com", body["email"])

	assert.Equal(t, http.StatusNotFound, f.api(http.MethodGet, "/api/customer/"+id).Code)

	require.Len(t, f.sink.events, 1)
	ev := f.sink.events[0]
	assert.Equal(t, audit.ActionCustomerDelete, ev.Action)
	assert.Equal(t, id, ev.CustomerID)
	assert.True(t, ev.Deleted)
	assert.NotEmpty(t, ev.Actor)
}

func TestDeleteUnknownCustomerIsZeroEffectSuccess(t *testing.T) {
	f := newFixture(t)
	w := f.api(http.MethodDelete, "/admin/customer/nope")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w.Body.Bytes())
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(0), body["deleted"])
	require.Len(t, f.sink.events, 1)
	assert.False(t, f.sink.events[0].Deleted)
}
