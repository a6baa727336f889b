package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telesto-labs/chime/internal/model"
	"github.com/telesto-labs/chime/internal/yamlio"
)

// ErrTaskNotFound is returned when no agenda entry matches the given UID.
// The entry may have been edited since the notification was shown, which
// changes its identity on purpose.
var ErrTaskNotFound = errors.New("agenda: task not found")

// MarkDone flags the entry identified by uid as done and persists the file.
func (p *DirProvider) MarkDone(ctx context.Context, uid string) error {
	return p.updateEntry(ctx, uid, func(e *Entry) error {
		e.Done = true
		return nil
	})
}

// ShiftDeadline pushes the entry's deadline out by the given duration,
// keeping the layout the user wrote it in. The entry's UID changes as a
// result: the shifted task is a new identity with fresh fire bookkeeping.
func (p *DirProvider) ShiftDeadline(ctx context.Context, uid string, by time.Duration) error {
	return p.updateEntry(ctx, uid, func(e *Entry) error {
		deadline, layout, err := parseDeadline(e.Deadline)
		if err != nil {
			return err
		}
		e.Deadline = deadline.Add(by).Format(layout)
		return nil
	})
}

// updateEntry locates the entry with the given UID across all sources,
// applies mutate, and writes the file back atomically.
func (p *DirProvider) updateEntry(ctx context.Context, uid string, mutate func(*Entry) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	paths, err := p.sourcePaths()
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		var f File
		if err := yamlio.Read(path, &f); err != nil {
			// A broken source cannot hold the entry we parsed earlier.
			p.reportSourceError(path, err)
			continue
		}

		for i := range f.Entries {
			e := &f.Entries[i]
			if model.TaskUID(e.Heading, e.Deadline) != uid {
				continue
			}
			if err := mutate(e); err != nil {
				return fmt.Errorf("update entry %s: %w", uid, err)
			}
			if err := yamlio.AtomicWrite(path, &f); err != nil {
				return fmt.Errorf("persist %s: %w", path, err)
			}
			p.logger.Infof("agenda updated file=%s entry=%d uid=%s", path, i, uid)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, uid)
}
