package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type widget struct {
	ID   int
	Name string
}

func openMemory(t *testing.T, opts ...gorm.Option) *gorm.DB {
	t.Helper()
	opts = append([]gorm.Option{&gorm.Config{SkipDefaultTransaction: true}}, opts...)
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), opts...)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

func countWidgets(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&widget{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	conn := openMemory(t)
	client := NewFromGorm(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	}))
	assert.Equal(t, int64(1), countWidgets(t, conn))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&widget{Name: "dropped"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), countWidgets(t, conn))

	assert.Panics(t, func() {
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&widget{Name: "panicked"}).Error)
			panic("boom")
		})
	})
	assert.Equal(t, int64(1), countWidgets(t, conn))
}

func TestPingAndClose(t *testing.T) {
	client := NewFromGorm(openMemory(t))
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()))
}

func TestIsSQLite(t *testing.T) {
	assert.True(t, IsSQLite(config.DBConfig{Driver: "sqlite"}))
	assert.True(t, IsSQLite(config.DBConfig{Driver: "SQLite3"}))
	assert.False(t, IsSQLite(config.DBConfig{Driver: "postgres"}))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{DSN: "  "}, nil)
	assert.Error(t, err)
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file:opened?mode=memory", MaxOpenConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.NoError(t, client.Ping(context.Background()))
}

func TestQueryLogReportsFailuresAndSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	conn := openMemory(t, &gorm.Config{Logger: newQueryLog(logg, time.Hour)})

	var w widget
	err := conn.Take(&w, "id = ?", 99).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "not-found is not logged")

	require.Error(t, conn.Exec("SELECT * FROM missing_table").Error)
	assert.Contains(t, buf.String(), "sql.failed")
	assert.Contains(t, buf.String(), "missing_table")

	buf.Reset()
	slow := &queryLog{logg: logg, slow: time.Nanosecond, mode: gormlogger.Warn}
	slow.Trace(context.Background(), time.Now().Add(-time.Millisecond), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Contains(t, buf.String(), "sql.slow")
}

func TestQueryLogSilentWithoutLogger(t *testing.T) {
	ql := newQueryLog(nil, 0).LogMode(gormlogger.Info)
	assert.NotPanics(t, func() {
		ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "", 0 }, errors.New("x"))
	})
}
