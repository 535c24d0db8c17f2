package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 glogger.Default.LogMode(glogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestMarkFailedIncrementsRetryCountAtomically(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewCashbackRepository(NewRepository(gdb))

	// 重试计数必须在 SQL 内递增，不依赖内存中的旧值
	mock.ExpectExec(`UPDATE "chain_cashbacks" SET .*"retry_count"=retry_count \+ 1.* WHERE cashback_id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), "cb-1", "insufficient funds")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedAcceptsFailedReconciliation(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewCashbackRepository(NewRepository(gdb))

	// 对账路径允许 FAILED 记录闭环：守卫条件同时覆盖 PROCESSING 与 FAILED
	mock.ExpectExec(`UPDATE "chain_cashbacks" SET .* WHERE cashback_id = \$\d+ AND status IN \(\$\d+,\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCompleted(context.Background(), "cb-1", "0xfeed", 1234)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessingGuardsStatus(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewCashbackRepository(NewRepository(gdb))

	// 终态记录不允许迁移：WHERE 条件未命中则 0 行受影响
	mock.ExpectExec(`UPDATE "chain_cashbacks"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkProcessing(context.Background(), "cb-done")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionReusesContextTx(t *testing.T) {
	gdb, mock := newMockDB(t)
	base := NewRepository(gdb)
	repo := NewCashbackRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "chain_cashbacks" WHERE cashback_id = \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cashback_id", "status"}).
			AddRow(1, "cb-1", int8(model.CashbackStatusPending)))
	mock.ExpectExec(`UPDATE "chain_cashbacks"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := base.Transaction(context.Background(), func(ctx context.Context) error {
		cb, err := repo.GetByCashbackID(ctx, "cb-1")
		if err != nil {
			return err
		}
		assert.Equal(t, model.CashbackStatusPending, cb.Status)
		_, err = repo.MarkProcessing(ctx, cb.CashbackID)
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isRetryableError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryableError(assert.AnError))
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.False(t, IsDuplicateKeyError(assert.AnError))
}

func TestPagination(t *testing.T) {
	p := Pagination{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 20, p.Limit())

	// 非法参数回落到默认值
	p = Pagination{}
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 50, p.Limit())
}
