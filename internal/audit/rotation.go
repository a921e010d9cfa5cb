package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	activeLogName = "psicoapp-audit.jsonl"
	segmentPrefix = "psicoapp-audit-"
)

// rotationManager decides when the active log is closed and renamed into
// a dated segment.
type rotationManager struct {
	config Config
	now    func() time.Time
}

func newRotationManager(config Config) *rotationManager {
	return &rotationManager{config: config, now: time.Now}
}

// needsRotation checks size and period limits of the active log.
func (rm *rotationManager) needsRotation(logPath string) (bool, error) {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat log file: %w", err)
	}

	if rm.config.RotationSize > 0 && info.Size() >= rm.config.RotationSize {
		return true, nil
	}

	now := rm.now()
	last := info.ModTime()
	switch rm.config.RotationPeriod {
	case "":
		return false, nil
	case "daily":
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd, nil
	case "weekly":
		ly, lw := last.ISOWeek()
		ny, nw := now.ISOWeek()
		return ly != ny || lw != nw, nil
	default:
		return false, fmt.Errorf("unknown rotation period: %s", rm.config.RotationPeriod)
	}
}

// segmentName creates psicoapp-audit-YYYYMMDD-HHMMSS-NNN.jsonl, with
// milliseconds for uniqueness.
func (rm *rotationManager) segmentName() string {
	now := rm.now()
	return fmt.Sprintf("%s%s-%03d.jsonl", segmentPrefix, now.Format("20060102-150405"), now.Nanosecond()/1000000)
}

// rotate renames the active log to the given segment name.
func (rm *rotationManager) rotate(logPath, segment string) (string, error) {
	rotatedPath := filepath.Join(filepath.Dir(logPath), segment)
	if err := os.Rename(logPath, rotatedPath); err != nil {
		return "", fmt.Errorf("failed to rename log file during rotation: %w", err)
	}
	return rotatedPath, nil
}

// LogFiles returns the rotated segments, oldest first, followed by the
// active log if it exists.
func LogFiles(logDir string) ([]string, error) {
	entries, err := os.ReadDir(logDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var segments []string
	hasActive := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case name == activeLogName:
			hasActive = true
		case strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, ".jsonl"):
			segments = append(segments, name)
		}
	}
	sort.Strings(segments)

	files := make([]string, 0, len(segments)+1)
	for _, seg := range segments {
		files = append(files, filepath.Join(logDir, seg))
	}
	if hasActive {
		files = append(files, filepath.Join(logDir, activeLogName))
	}
	return files, nil
}
