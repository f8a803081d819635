// File: internal/runctx/runctx.go (complete file)

package runctx

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Context struct {
	SessionID    string
	StartedAtUTC time.Time
	DataDir      string
}

// New prepares dataDir for a session and stamps it.
func New(dataDir string) (*Context, error) {
	now := time.Now().UTC()
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir %q: %w", dataDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}

	return &Context{
		SessionID:    now.Format("20060102_150405"),
		StartedAtUTC: now,
		DataDir:      abs,
	}, nil
}

// DBDir is where the persisted key/value store lives.
func (c *Context) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}
