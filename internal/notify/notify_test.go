package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/logging"
	"github.com/telesto-labs/chime/internal/model"
)

func TestMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "notify", logging.LevelInfo)

	h := Message(logger)
	err := h.Invoke(context.Background(), "", dispatch.Context{
		Task: model.Task{
			Heading:  "ship release",
			Deadline: time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC),
		},
		Remaining: 900 * time.Second,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `REMINDER "ship release"`)
	assert.Contains(t, out, "2026-09-01T17:00:00Z")
	assert.Contains(t, out, "in 15m0s")
	assert.False(t, h.Interactive())
}

func TestDescribeRemaining_Overdue(t *testing.T) {
	assert.Equal(t, "overdue 10m0s", describeRemaining(-600*time.Second))
}

func TestParseDialogButton(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"button returned:Done, gave up:false", dispatch.ActionDone},
		{"button returned:+1h, gave up:false", dispatch.ActionHour},
		{"button returned:+1w, gave up:false", dispatch.ActionWeek},
		{"button returned:, gave up:true", ""},
		{"button returned:Done, gave up:true", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDialogButton(tt.out), "output %q", tt.out)
	}
}

func TestEscapeAppleScript(t *testing.T) {
	assert.Equal(t, `say \"hi\"`, escapeAppleScript(`say "hi"`))
	assert.Equal(t, `a\\b`, escapeAppleScript(`a\b`))
}

func TestEmail_NotImplemented(t *testing.T) {
	h := &Email{}
	err := h.Invoke(context.Background(), "", dispatch.Context{})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestRegisterBuiltins(t *testing.T) {
	logger := logging.New(&bytes.Buffer{}, "notify", logging.LevelError)
	d := dispatch.New(nil, nil, logger)

	RegisterBuiltins(d, d, model.DefaultConfig().Handlers, logger)

	got := strings.Join(d.Handlers(), ",")
	for _, name := range []string{"message", "audible-alert", "system-notification", "popup-window", "email"} {
		assert.Contains(t, got, name)
	}
}
