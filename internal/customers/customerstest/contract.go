// Package customerstest holds a behavioural suite every customers.Repository must pass.
package customerstest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/models"
)

// RunRepositoryContract runs the suite against fresh repositories from newRepo.
func RunRepositoryContract(t *testing.T, newRepo func(t *testing.T) customers.Repository) {
	t.Run("UpsertAndGet", func(t *testing.T) { testUpsertAndGet(t, newRepo(t)) })
	t.Run("GetMissingReturnsNil", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListOrder(t, newRepo(t)) })
	t.Run("AccountingUpdateAndClear", func(t *testing.T) { testAccounting(t, newRepo(t)) })
	t.Run("ClearWorkspace", func(t *testing.T) { testClearWorkspace(t, newRepo(t)) })
	t.Run("PartialUpdatesOnMissingID", func(t *testing.T) { testMissingUpdates(t, newRepo(t)) })
	t.Run("DeleteCounts", func(t *testing.T) { testDelete(t, newRepo(t)) })
}

// WorkspaceCustomer returns a customer carrying only a workspace bundle.
func WorkspaceCustomer(id, email string) *models.Customer {
	return &models.Customer{
		ID:    id,
		Email: email,
		Name:  "Name " + id,
		Workspace: &models.WorkspaceCredentials{
			AccessToken:  "ws-at-" + id,
			RefreshToken: "ws-rt-" + id,
			Scopes:       []string{"https://www.googleapis.com/auth/spreadsheets", "openid"},
			ExpiresAt:    time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
		},
	}
}

// AccountingBundle returns a complete accounting bundle for companyID.
func AccountingBundle(companyID string) *models.AccountingCredentials {
	return &models.AccountingCredentials{
		AccessToken:  "qb-at-" + companyID,
		RefreshToken: "qb-rt-" + companyID,
		CompanyID:    companyID,
		ExpiresAt:    time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
		APIBaseURL:   "https://sandbox-quickbooks.api.intuit.com",
	}
}

func testUpsertAndGet(t *testing.T, r customers.Repository) {
	ctx := context.Background()
	c := WorkspaceCustomer("c1", "a@example.com")
	require.NoError(t, r.Upsert(ctx, c))
	require.False(t, c.CreatedAt.IsZero())
	require.False(t, c.UpdatedAt.IsZero())

	got, err := r.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)
	require.NotNil(t, got.Workspace)
	assert.Equal(t, "ws-at-c1", got.Workspace.AccessToken)
	assert.ElementsMatch(t, c.Workspace.Scopes, got.Workspace.Scopes)
	assert.Nil(t, got.Accounting)

	// replace keeps the id and overwrites fields
	c.Name = "Renamed"
	require.NoError(t, r.Upsert(ctx, c))
	got, err = r.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func testGetMissing(t *testing.T, r customers.Repository) {
	got, err := r.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = r.FindByCompanyID(context.Background(), "realm-x")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testListOrder(t *testing.T, r customers.Repository) {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	for i, id := range []string{"old", "mid", "new"} {
		c := WorkspaceCustomer(id, id+"@example.com")
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, r.Upsert(ctx, c))
	}
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func testAccounting(t *testing.T, r customers.Repository) {
	ctx := context.Background()
	c := WorkspaceCustomer("c2", "b@example.com")
	require.NoError(t, r.Upsert(ctx, c))
	before, err := r.GetByID(ctx, "c2")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, r.UpdateAccounting(ctx, "c2", AccountingBundle("realm-1")))
	got, err := r.GetByID(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, got.Accounting)
	assert.Equal(t, "qb-at-realm-1", got.Accounting.AccessToken)
	assert.Equal(t, "realm-1", got.Accounting.CompanyID)
	assert.True(t, got.UpdatedAt.After(before.UpdatedAt), "updatedAt must advance")
	require.NotNil(t, got.Workspace, "workspace bundle untouched")

	found, err := r.FindByCompanyID(ctx, "realm-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "c2", found.ID)

	require.NoError(t, r.UpdateAccounting(ctx, "c2", nil))
	got, err = r.GetByID(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, got.Accounting, "the whole bundle is cleared")
	found, err = r.FindByCompanyID(ctx, "realm-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testClearWorkspace(t *testing.T, r customers.Repository) {
	ctx := context.Background()
	c := WorkspaceCustomer("c3", "c@example.com")
	c.Accounting = AccountingBundle("realm-3")
	require.NoError(t, r.Upsert(ctx, c))

	require.NoError(t, r.ClearWorkspace(ctx, "c3"))
	got, err := r.GetByID(ctx, "c3")
	require.NoError(t, err)
	assert.Nil(t, got.Workspace)
	require.NotNil(t, got.Accounting)
	assert.Equal(t, "c@example.com", got.Email)

	// idempotent
	require.NoError(t, r.ClearWorkspace(ctx, "c3"))
}

func testMissingUpdates(t *testing.T, r customers.Repository) {
	ctx := context.Background()
	assert.ErrorIs(t, r.UpdateAccounting(ctx, "ghost", AccountingBundle("r")), customers.ErrNotFound)
	assert.ErrorIs(t, r.ClearWorkspace(ctx, "ghost"), customers.ErrNotFound)
}

func testDelete(t *testing.T, r customers.Repository) {
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, WorkspaceCustomer("c4", "d@example.com")))
	n, err := r.Delete(ctx, "c4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err := r.GetByID(ctx, "c4")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err = r.Delete(ctx, "c4")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
