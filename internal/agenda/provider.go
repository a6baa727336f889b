// Package agenda loads deadline tasks from a directory of YAML agenda files
// and writes user-initiated changes (done, deadline shifts) back to them.
package agenda

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/telesto-labs/chime/internal/events"
	"github.com/telesto-labs/chime/internal/logging"
	"github.com/telesto-labs/chime/internal/model"
	"github.com/telesto-labs/chime/internal/yamlio"
)

// File is one agenda source on disk.
type File struct {
	SchemaVersion int     `yaml:"schema_version"`
	Entries       []Entry `yaml:"entries"`
}

// Entry is one deadline item as written by the user.
type Entry struct {
	Heading  string            `yaml:"heading"`
	Deadline string            `yaml:"deadline"`
	Policy   string            `yaml:"policy,omitempty"`
	Done     bool              `yaml:"done,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty"`
}

// Deadline layouts accepted in agenda files, tried in order. A date without
// a time means start of that day.
var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDeadline(raw string) (time.Time, string, error) {
	for _, layout := range deadlineLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return ts, layout, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unparseable deadline %q", raw)
}

// DirProvider reads every *.yaml/*.yml file under a directory. A file that
// cannot be read or parsed is reported and skipped; the remaining sources
// still contribute tasks.
type DirProvider struct {
	dir    string
	bus    *events.Bus
	logger *logging.Logger

	// writeMu serializes read-modify-write cycles on agenda files.
	writeMu sync.Mutex
}

// NewDirProvider creates a provider over dir. bus may be nil.
func NewDirProvider(dir string, bus *events.Bus, logger *logging.Logger) *DirProvider {
	return &DirProvider{dir: dir, bus: bus, logger: logger}
}

// Dir returns the agenda directory.
func (p *DirProvider) Dir() string { return p.dir }

// List returns the current tasks across all readable sources. An error is
// returned only when the directory itself cannot be listed; per-file and
// per-entry problems are reported and skipped.
func (p *DirProvider) List(ctx context.Context) ([]model.Task, error) {
	paths, err := p.sourcePaths()
	if err != nil {
		return nil, err
	}

	var tasks []model.Task
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return tasks, err
		}

		var f File
		if err := yamlio.Read(path, &f); err != nil {
			p.reportSourceError(path, err)
			continue
		}
		for i, entry := range f.Entries {
			if entry.Done {
				continue
			}
			task, err := entryTask(entry, path, i)
			if err != nil {
				p.logger.Warnf("entry skipped file=%s index=%d: %v", filepath.Base(path), i, err)
				continue
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func entryTask(entry Entry, path string, index int) (model.Task, error) {
	if entry.Heading == "" {
		return model.Task{}, fmt.Errorf("entry has no heading")
	}
	deadline, _, err := parseDeadline(entry.Deadline)
	if err != nil {
		return model.Task{}, err
	}
	return model.Task{
		Heading:     entry.Heading,
		Deadline:    deadline,
		RawDeadline: entry.Deadline,
		Policy:      entry.Policy,
		UID:         model.TaskUID(entry.Heading, entry.Deadline),
		Source:      model.SourceRef{File: path, Index: index},
		Fields:      entry.Fields,
	}, nil
}

func (p *DirProvider) sourcePaths() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("list agenda dir %s: %w", p.dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(p.dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (p *DirProvider) reportSourceError(path string, err error) {
	p.logger.Errorf("agenda source unreadable file=%s: %v", filepath.Base(path), err)
	if p.bus != nil {
		p.bus.Publish(events.Event{
			Type:    events.TypeSourceError,
			Details: map[string]any{"file": path, "error": err.Error()},
		})
	}
}
