package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxLogSize caps the audit log at 20MB before rotation.
const DefaultMaxLogSize = 20 * 1024 * 1024

const archiveDir = "archive"

// AuditEntry is one line of the escalation audit log (JSONL).
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	TaskUID   string         `json:"task_uid,omitempty"`
	Policy    string         `json:"policy,omitempty"`
	Tier      int            `json:"tier"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditLog appends scheduler events to a JSONL file so fired escalations can
// be inspected after the fact. Rotation moves the file aside once it exceeds
// maxSize.
type AuditLog struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	path        string
}

// NewAuditLog opens (or creates) the audit log at path.
func NewAuditLog(path string, maxSize int64) (*AuditLog, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}

	a := &AuditLog{path: path, maxSize: maxSize}
	if err := a.open(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AuditLog) open() error {
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	a.file = f
	a.currentSize = stat.Size()
	return nil
}

// Record writes ev to the log. Errors are returned for the caller to report;
// audit failures never abort scheduling.
func (a *AuditLog) Record(ev Event) error {
	entry := AuditEntry{
		Timestamp: ev.Timestamp,
		EventType: string(ev.Type),
		TaskUID:   ev.TaskUID,
		Policy:    ev.Policy,
		Tier:      ev.Tier,
		Details:   ev.Details,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentSize+int64(len(data)) > a.maxSize {
		if err := a.rotate(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}

	n, err := a.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	a.currentSize += int64(n)
	return nil
}

func (a *AuditLog) rotate() error {
	if err := a.file.Close(); err != nil {
		return err
	}

	dir := filepath.Join(filepath.Dir(a.path), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	stamp := time.Now().Format("20060102_150405")
	archived := filepath.Join(dir, fmt.Sprintf("%s.%s", filepath.Base(a.path), stamp))
	if err := os.Rename(a.path, archived); err != nil {
		return err
	}

	return a.open()
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	if err := a.file.Sync(); err != nil {
		return err
	}
	return a.file.Close()
}
