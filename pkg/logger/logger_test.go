package logger

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

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"), "未知级别回退到info")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biblioteca.log")

	log := New(Config{
		Level:      "info",
		Format:     "console",
		Output:     path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	log.Debug("不应写入")
	log.Info("prestito creato", zap.Uint("loan_id", 42))
	_ = log.Sync() // stdout为管道时Sync会返回EINVAL，文件写入本身是同步的

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "debug级别应被过滤")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "prestito creato", entry["msg"])
	assert.Equal(t, float64(42), entry["loan_id"])
	t.Logf("✓ 文件日志: %s", lines[0])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
