package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: *NewDefaultConfig(), wantErr: false},
		{name: "json", cfg: Config{Level: "debug", Format: "json"}, wantErr: false},
		{name: "trace level", cfg: Config{Level: "trace", Format: "console"}, wantErr: false},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
		{name: "bad level", cfg: Config{Level: "loud", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info(context.Background(), "hello")
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("bogus")
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithProject(ctx, "alpha")
	ctx = WithOperation(ctx, "deploy")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "project", fields[0].Key)
	assert.Equal(t, "operation", fields[1].Key)
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	tl.Warn(WithProject(context.Background(), "alpha"), "identity mismatch")

	tl.AssertLogged(t, zapcore.WarnLevel, "identity mismatch")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "identity mismatch")

	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "alpha", entries[0].ContextMap()["project"])
}
