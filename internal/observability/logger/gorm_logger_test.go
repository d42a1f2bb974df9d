package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "project_sales" WHERE id = 1`, "SELECT", "project_sales"},
		{"INSERT INTO tasks (id) VALUES (1)", "INSERT", "tasks"},
		{`  (UPDATE "project_sales" SET final_price = 1)`, "UPDATE", "project_sales"},
		{"DELETE FROM `sale_files` WHERE id = 2", "DELETE", "sale_files"},
		{"", "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLoggerTraceLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        10 * time.Millisecond,
		IgnoreRecordNotFound: true,
	})

	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, 1, logs.FilterMessage("gorm.query").Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	entries := logs.All()
	assert.Equal(t, zap.ErrorLevel, entries[len(entries)-1].Level)
}

func TestGormLoggerSilentAndMessages(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())

	l.Info(context.Background(), "opened %s", "db")
	assert.Equal(t, 0, logs.Len())
	l.Warn(context.Background(), "pool %d", 3)
	assert.Equal(t, 1, logs.FilterMessage("pool 3").Len())

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	assert.Equal(t, 1, logs.Len())
}

func TestGormLoggerParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(nil, DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", "secret-token")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)
}
