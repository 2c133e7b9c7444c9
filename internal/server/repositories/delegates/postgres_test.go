package delegates

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var delegateColumns = []string{"id", "owner_id", "role", "granted_at", "expires_at"}

func TestUpsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	granted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO delegates .* ON CONFLICT \(id, owner_id\)`).
		WithArgs("d1", "o1", "EXECUTOR", granted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), &models.Delegate{ID: "d1", OwnerID: "o1", Role: models.RoleExecutor, GrantedAt: granted}))

	mock.ExpectExec(`INSERT INTO delegates`).WillReturnError(errors.New("down"))
	assert.ErrorContains(t, repo.Upsert(context.Background(), &models.Delegate{ID: "d1"}), "upsert delegate")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	granted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := granted.AddDate(1, 0, 0)
	mock.ExpectQuery(`SELECT .* FROM delegates WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("d1", "o1").
		WillReturnRows(sqlmock.NewRows(delegateColumns).AddRow("d1", "o1", "HEALTHCARE_PROXY", granted, expires))

	got, err := repo.Get(context.Background(), "d1", "o1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleHealthcareProxy, got.Role)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, expires, *got.ExpiresAt)

	mock.ExpectQuery(`SELECT .* FROM delegates`).
		WithArgs("x", "o1").
		WillReturnRows(sqlmock.NewRows(delegateColumns))
	_, err = repo.Get(context.Background(), "x", "o1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM delegates WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("d1", "o1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "d1", "o1"))

	mock.ExpectExec(`DELETE FROM delegates`).
		WithArgs("d1", "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "d1", "o1"), common.ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	granted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM delegates WHERE owner_id = \$1`).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(delegateColumns).
			AddRow("a", "o1", "EXECUTOR", granted, nil).
			AddRow("b", "o1", "LEGAL_ADVISOR", granted, nil))

	got, err := repo.ListByOwner(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].ExpiresAt)
	assert.Equal(t, models.RoleLegalAdvisor, got[1].Role)
}
