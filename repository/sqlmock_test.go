package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestTransactorWithMock(t *testing.T) {
	t.Run("commits when the unit of work succeeds", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := repository.NewTransactor(db).WithTransaction(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns the unit of work error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := repository.NewTransactor(db).WithTransaction(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := repository.NewTransactor(db).WithTransaction(context.Background(), func(context.Context) error { panic("bad state") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMaxVersionNumberWithMock(t *testing.T) {
	t.Run("reads the highest number", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT MAX\(version_number\) FROM "price_buildup_versions" WHERE product_type = \$1`).
			WithArgs(string(models.ProductTypePetrol)).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))

		n, err := repository.NewPriceBuildupVersionRepository(db).MaxVersionNumber(context.Background(), models.ProductTypePetrol)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no versions yet", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT MAX\(version_number\) FROM "price_buildup_versions"`).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

		n, err := repository.NewPriceBuildupVersionRepository(db).MaxVersionNumber(context.Background(), models.ProductTypeDiesel)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("store errors are wrapped", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT MAX\(version_number\)`).WillReturnError(errors.New("connection reset"))

		_, err := repository.NewPriceBuildupVersionRepository(db).MaxVersionNumber(context.Background(), models.ProductTypePetrol)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read max version number")
	})
}

func TestIncrementAccessCountWithMock(t *testing.T) {
	db, mock := setupMockDB(t)
	at := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "configurations" SET "access_count"=access_count \+ 1,"last_accessed_at"=\$1 WHERE id = \$2`).
		WithArgs(at, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repository.NewConfigurationRepository(db).IncrementAccessCount(context.Background(), 7, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
