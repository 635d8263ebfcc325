// Package status persists the per-platform process checkpoint file.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the pacing snapshot written on every successful action and
// at shutdown, and read once at startup. It is an advisory hint only: the
// database keeps the authoritative last-action times.
type Checkpoint struct {
	LastActionTime     *time.Time `json:"last_action_time"`
	IsRunning          bool       `json:"is_running"`
	ActionsPerHour     int        `json:"actions_per_hour"`
	MinDelay           int        `json:"min_delay"`
	CurrentMinInterval int        `json:"current_min_interval"`
	CurrentMaxInterval int        `json:"current_max_interval"`
}

// Path returns the checkpoint file path for a platform under stateDir.
func Path(stateDir, platform string) string {
	return filepath.Join(stateDir, platform+"_status.json")
}

// Load reads a checkpoint. A missing file yields found=false, not an error.
func Load(path string) (Checkpoint, bool, error) {
	var cp Checkpoint
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cp, false, nil
	}
	if err != nil {
		return cp, false, fmt.Errorf("read status file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, false, fmt.Errorf("parse status file %s: %w", path, err)
	}
	return cp, true, nil
}

// Save rewrites the checkpoint wholesale.
func Save(path string, cp Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write status file %s: %w", path, err)
	}
	return nil
}
