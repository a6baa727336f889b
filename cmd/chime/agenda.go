package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/telesto-labs/chime/internal/agenda"
	"github.com/telesto-labs/chime/internal/daemon"
	"github.com/telesto-labs/chime/internal/logging"
)

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "List agenda tasks with their remaining time",
	Long: `Reads the agenda directory directly and prints every pending task,
soonest deadline first. Works whether or not the daemon is running.`,
	RunE: runAgenda,
}

func runAgenda(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(filepath.Join(chimeDir, daemon.ConfigFileName))
	if err != nil {
		return err
	}
	agendaDir := cfg.Agenda.Dir
	if !filepath.IsAbs(agendaDir) {
		agendaDir = filepath.Join(chimeDir, agendaDir)
	}

	logger := logging.New(io.Discard, "agenda", logging.LevelError)
	provider := agenda.NewDirProvider(agendaDir, nil, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	tasks, err := provider.List(ctx)
	if err != nil {
		return fmt.Errorf("list agenda: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No pending tasks.")
		return nil
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Deadline.Before(tasks[j].Deadline) })

	now := time.Now()
	for _, task := range tasks {
		remaining := task.Deadline.Sub(now).Round(time.Minute)
		state := fmt.Sprintf("in %s", remaining)
		if remaining < 0 {
			state = fmt.Sprintf("overdue %s", -remaining)
		}
		policy := task.Policy
		if policy == "" {
			policy = "default"
		}
		fmt.Printf("%-12s  %-40q  due %s  [%s]\n",
			state, task.Heading, task.Deadline.Format("2006-01-02 15:04"), policy)
	}
	return nil
}
