package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

func TestGrantDelegate(t *testing.T) {
	f := newFixture(t)
	doc := f.create(models.DocumentTypeMedical)

	entries := f.newEntries(func() {
		d, err := f.m.GrantDelegate(context.Background(), owner, owner, "proxy", models.RoleHealthcareProxy, nil)
		require.NoError(t, err)
		assert.Equal(t, models.RoleHealthcareProxy, d.Role)
	})
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventPermissionChange, entries[0].EventType)
	assert.Equal(t, models.ResourceDelegate, entries[0].ResourceType)

	_, err := f.m.GetDocument(context.Background(), doc.ID, "proxy")
	assert.NoError(t, err)
}

func TestGrantDelegate_Rejected(t *testing.T) {
	f := newFixture(t)
	past := f.now.Add(-time.Minute)

	_, err := f.m.GrantDelegate(context.Background(), owner, owner, owner, models.RoleExecutor, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.m.GrantDelegate(context.Background(), owner, owner, "x", "BUTLER", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.m.GrantDelegate(context.Background(), owner, owner, "x", models.RoleExecutor, &past)
	assert.ErrorIs(t, err, common.ErrValidation)

	f.delegate("exec", models.RoleExecutor, nil)
	_, err = f.m.GrantDelegate(context.Background(), owner, "exec", "x", models.RoleExecutor, nil)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = f.m.GrantDelegate(context.Background(), owner, stranger, "x", models.RoleExecutor, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRevokeDelegate_RemovesGrants(t *testing.T) {
	f := newFixture(t)
	doc := f.create(models.DocumentTypeLegal)
	f.delegate("adv", models.RoleLegalAdvisor, nil)
	f.entry(doc.ID, "adv", models.AccessWrite, nil)

	entries := f.newEntries(func() {
		require.NoError(t, f.m.RevokeDelegate(context.Background(), owner, owner, "adv"))
	})
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].Details["entries_removed"])

	_, err := f.store.AccessEntries().Get(context.Background(), doc.ID, "adv")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.m.GetDocument(context.Background(), doc.ID, "adv")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = f.m.RevokeDelegate(context.Background(), owner, owner, "adv")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGrantAccess(t *testing.T) {
	f := newFixture(t)
	doc := f.create(models.DocumentTypeMedical)
	f.delegate("adv", models.RoleLegalAdvisor, nil)

	_, err := f.m.GetDocument(context.Background(), doc.ID, "adv")
	require.ErrorIs(t, err, common.ErrForbidden)

	e, err := f.m.GrantAccess(context.Background(), doc.ID, owner, "adv", models.AccessRead, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AccessRead, e.AccessLevel)

	_, err = f.m.GetDocument(context.Background(), doc.ID, "adv")
	assert.NoError(t, err)

	require.NoError(t, f.m.RevokeAccess(context.Background(), doc.ID, owner, "adv"))
	_, err = f.m.GetDocument(context.Background(), doc.ID, "adv")
	assert.ErrorIs(t, err, common.ErrForbidden)

	err = f.m.RevokeAccess(context.Background(), doc.ID, owner, "adv")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGrantAccess_Rejected(t *testing.T) {
	f := newFixture(t)
	doc := f.create(models.DocumentTypeLegal)

	_, err := f.m.GrantAccess(context.Background(), doc.ID, owner, "nobody", models.AccessRead, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	f.delegate("exec", models.RoleExecutor, nil)
	_, err = f.m.GrantAccess(context.Background(), doc.ID, owner, "exec", "ALL", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.m.GrantAccess(context.Background(), doc.ID, "exec", "exec", models.AccessManage, nil)
	assert.ErrorIs(t, err, common.ErrForbidden)
}
