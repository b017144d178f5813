package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// debugEntry is one recorded oracle call.
type debugEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Method     string         `json:"method"`
	Model      string         `json:"model"`
	Params     map[string]any `json:"params"`
	Response   any            `json:"response"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// writeDebugEntry stores an entry as <stateDir>/debug/<time>_<id>.json.
// Failures are logged and otherwise ignored.
func writeDebugEntry(stateDir string, e debugEntry) {
	if stateDir == "" {
		stateDir = "."
	}
	dir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("genai.writeDebugEntry: create debug dir failed", "dir", dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebugEntry: marshal failed", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s.json", e.Timestamp.UTC().Format("20060102T150405.000"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("genai.writeDebugEntry: write failed", "path", path, "error", err)
		return
	}
	slog.Debug("genai.writeDebugEntry: call recorded", "path", path, "method", e.Method)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
