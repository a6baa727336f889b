package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/ipc"
)

func daemonClient() *ipc.Client {
	return ipc.NewClient(filepath.Join(chimeDir, ipc.DefaultSocketName))
}

// sendOp performs one control-socket exchange and turns daemon-side errors
// into command errors.
func sendOp(op string, params any) (*ipc.Response, error) {
	resp, err := daemonClient().SendOp(op, params)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := sendOp("ping", nil); err != nil {
			return err
		}
		fmt.Println("Daemon is running.")
		return nil
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Ask the daemon to evaluate the agenda now",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := sendOp("tick", nil); err != nil {
			return err
		}
		fmt.Println("Tick requested.")
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List open interactive notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := sendOp("records", nil)
		if err != nil {
			return err
		}
		var data struct {
			Records []dispatch.RecordSummary `json:"records"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return fmt.Errorf("decode records: %w", err)
		}
		if len(data.Records) == 0 {
			fmt.Println("No open notifications.")
			return nil
		}
		for _, r := range data.Records {
			fmt.Printf("%s  tier %d  %q\n", r.ID, r.Tier, r.Heading)
		}
		return nil
	},
}

var actionCmd = &cobra.Command{
	Use:   "action <dispatch-id> <done|hour|day|week>",
	Short: "Apply a follow-up action to an open notification",
	Long: `Resolves an open interactive notification: "done" marks the task done,
"hour", "day" and "week" push its deadline out by that much.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]string{"dispatch_id": args[0], "key": args[1]}
		if _, err := sendOp("action", params); err != nil {
			return err
		}
		fmt.Printf("Applied %s to %s.\n", args[1], args[0])
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <dispatch-id>",
	Short: "Close an open notification without acting on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]string{"dispatch_id": args[0], "reason": "cli"}
		if _, err := sendOp("close", params); err != nil {
			return err
		}
		fmt.Printf("Closed %s.\n", args[0])
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the daemon to shut down",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := sendOp("shutdown", nil); err != nil {
			return err
		}
		fmt.Println("Shutdown requested.")
		return nil
	},
}
