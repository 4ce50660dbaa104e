package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newPingMock(t *testing.T) (gorm.Dialector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return postgres.New(postgres.Config{Conn: db}), mock
}

func TestOpenWithRetry_ClosesFailedAttempt(t *testing.T) {
	down, downMock := newPingMock(t)
	downMock.ExpectPing().WillReturnError(errors.New("connection refused"))
	downMock.ExpectClose()

	up, upMock := newPingMock(t)
	upMock.ExpectPing()
	upMock.ExpectPing()

	dialectors := []gorm.Dialector{down, up}
	calls := 0
	db, err := openWithRetry(func() gorm.Dialector {
		d := dialectors[calls]
		calls++
		return d
	}, 3, 0, zap.NewNop())

	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Equal(t, 2, calls)
	assert.NoError(t, downMock.ExpectationsWereMet(), "pool of the failed attempt must be closed")
	assert.NoError(t, upMock.ExpectationsWereMet())
}

func TestOpenWithRetry_GivesUp(t *testing.T) {
	var mocks []sqlmock.Sqlmock
	db, err := openWithRetry(func() gorm.Dialector {
		d, mock := newPingMock(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectClose()
		mocks = append(mocks, mock)
		return d
	}, 2, 0, zap.NewNop())

	assert.Nil(t, db)
	assert.ErrorContains(t, err, "connection refused")
	require.Len(t, mocks, 2)
	for _, mock := range mocks {
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "app", Password: "secret", Name: "orders", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db user=app password=secret dbname=orders port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
