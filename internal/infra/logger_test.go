package infra

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ngsn.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.Named("sampler").Debug("pass complete", zap.Int("entries", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &line))
	assert.Equal(t, "pass complete", line["msg"])
	assert.Equal(t, "sampler", line["logger"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, float64(3), line["entries"])
	assert.Contains(t, line, "time")
}

func TestNewLogger_Level(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "warn"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_RejectsBadInput(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "chatty"})
	assert.Error(t, err)

	_, err = NewLogger(LoggerConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestPrivilege_Hint(t *testing.T) {
	root := &Privilege{IsRoot: true, Username: "root"}
	assert.Empty(t, root.Hint())
	assert.Contains(t, root.String(), "root")

	user := &Privilege{Username: "alice"}
	assert.Contains(t, user.Hint(), "sudo")
	assert.Contains(t, user.String(), "alice")
}

func TestDetectPrivilege_SudoUser(t *testing.T) {
	t.Setenv("SUDO_USER", "alice")

	p := DetectPrivilege()

	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, os.Geteuid() == 0, p.IsRoot)
}
