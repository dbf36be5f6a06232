package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFormat_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("production", "", &buf)

	log.Info("entry posted", "entry_id", "abc")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "entry posted", record["msg"])
	assert.Equal(t, "abc", record["entry_id"])
	assert.Contains(t, record["source"], "logger_test.go:")
}

func TestNewWithFormat_DevelopmentDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("development", "", &buf)

	log.Debug("reconcile start")
	assert.Contains(t, buf.String(), "reconcile start")
}

func TestWithContext_AddsScopeFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("production", "", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, CompanyIDKey, "company-1")

	log.WithContext(ctx).Info("hello")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "company-1", record["company_id"])
	assert.NotContains(t, record, "user_id")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat("production", "", &buf)

	log.WithFields(map[string]interface{}{"component": "ledger", "count": 2}).Info("x")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ledger", record["component"])
	assert.EqualValues(t, 2, record["count"])
}

func TestParseLevel(t *testing.T) {
	lvl, ok := parseLevel("warn")
	assert.True(t, ok)
	assert.Equal(t, "WARN", lvl.String())

	_, ok = parseLevel("")
	assert.False(t, ok)
	_, ok = parseLevel("loud")
	assert.False(t, ok)
}

func TestNew_LogLevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	log := New("development", &buf)
	log.Warn("ignored")
	assert.Empty(t, buf.String())

	log.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
