package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := map[string]struct {
		Config    Config
		ExpectErr bool
	}{
		"defaults":      {Config: Config{}},
		"debug-json":    {Config: Config{Level: "debug", Format: "json"}},
		"console-color": {Config: Config{Level: "warn", Format: "console", Colorize: true}},
		"bad-level":     {Config: Config{Level: "loud"}, ExpectErr: true},
		"bad-format":    {Config: Config{Format: "xml"}, ExpectErr: true},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			log, err := New(tt.Config)
			if tt.ExpectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}

func TestNewJSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	log, err := New(Config{Level: "debug", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)

	log.Debug("Opening input", zap.String("path", "in.csv"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "debug", entry["level"])
	require.Equal(t, "Opening input", entry["message"])
	require.Equal(t, "in.csv", entry["path"])
	require.Contains(t, entry, "timestamp")
}
