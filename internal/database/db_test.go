package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zezere/email-bot/internal/mail"
)

func TestOpen_EmptyDatabaseURL(t *testing.T) {
	db, err := Open("")
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "DATABASE_URL not set")
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return &Store{db: sqlx.NewDb(mockDB, "sqlmock"), contextWindow: 6}, mock
}

func TestAttachVerdict_ExecFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE messages SET verdict").
		WillReturnError(sql.ErrConnDone)

	err := store.AttachVerdict(context.Background(), "m1", Verdict{Decision: DecisionAllow})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "attach verdict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDelivery_ExecFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE messages SET delivery_status").
		WillReturnError(sql.ErrConnDone)

	err := store.MarkDelivery(context.Background(), "m1", DeliverySent)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mark delivery")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceCheckpoint_BeginFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err := store.AdvanceCheckpoint(context.Background(),
		mail.Cursor{ReceivedAt: time.Unix(1, 0), ExternalID: "<m1@mx>"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "begin advance checkpoint")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireRunLock_ExecFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO run_lock").
		WillReturnError(sql.ErrConnDone)

	acquired, err := store.AcquireRunLock(context.Background(), "holder", time.Minute)
	assert.Error(t, err)
	assert.False(t, acquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInbound_DuplicateCheckFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM messages WHERE external_id").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, _, _, err := store.RecordInbound(context.Background(), InboundEmail{
		Address:    "alice@example.com",
		ExternalID: "<m1@mx>",
		ReceivedAt: time.Now(),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "check duplicate")
	assert.NoError(t, mock.ExpectationsWereMet())
}
