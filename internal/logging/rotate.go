package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const megabyte = 1 << 20

// openLogFile returns a size-rotated writer for path. maxBytes is rounded
// up to whole megabytes, the unit lumberjack rotates on; backups is the
// number of rotated files kept.
func openLogFile(path string, maxBytes int64, backups int) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	mb := int((maxBytes + megabyte - 1) / megabyte)
	if mb < 1 {
		mb = 1
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    mb,
		MaxBackups: backups,
	}, nil
}
