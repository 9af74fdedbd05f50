package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	echolog "github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedEchoLogger(level slog.Level) (*EchoLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewEchoLogger(logger, level), buf
}

func TestEchoLoggerLevelMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		set  slog.Level
		want echolog.Lvl
	}{
		{"debug", slog.LevelDebug, echolog.DEBUG},
		{"info", slog.LevelInfo, echolog.INFO},
		{"warn", slog.LevelWarn, echolog.WARN},
		{"error", slog.LevelError, echolog.ERROR},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l, _ := newBufferedEchoLogger(tc.set)
			assert.Equal(t, tc.want, l.Level())
		})
	}
}

func TestEchoLoggerSetLevelGates(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedEchoLogger(slog.LevelInfo)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String(), "debug should be below the info threshold")

	l.SetLevel(echolog.DEBUG)
	l.Debugf("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")

	buf.Reset()
	l.SetLevel(echolog.OFF)
	l.Error("suppressed")
	assert.Empty(t, buf.String(), "OFF should suppress error output")
}

func TestEchoLoggerPrintfGoesToInfo(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedEchoLogger(slog.LevelInfo)
	l.Printf("listening on %s", ":8090")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "listening on :8090", record["msg"])
}

func TestEchoLoggerJSONPayload(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedEchoLogger(slog.LevelInfo)
	l.Errorj(echolog.JSON{"path": "/api/v2/images", "status": 500})

	out := buf.String()
	assert.Contains(t, out, "echo error")
	assert.Contains(t, out, "/api/v2/images")
}

func TestEchoLoggerPanicVariants(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedEchoLogger(slog.LevelInfo)

	assert.PanicsWithValue(t, "boom", func() { l.Panic("boom") })
	assert.Contains(t, buf.String(), "boom")

	assert.Panics(t, func() { l.Fatalf("bind: %s", "address in use") })
	assert.Contains(t, buf.String(), "address in use")
}

func TestEchoLoggerNilFallback(t *testing.T) {
	l := NewEchoLogger(nil, slog.LevelInfo)
	require.NotNil(t, l)
	assert.Equal(t, echolog.INFO, l.Level())
	assert.Empty(t, l.Prefix())
}
