package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"timeout":   true,
}

// printResult writes v in the format chosen by --output. YAML output is
// derived from the JSON form so field names match the API.
func printResult(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		var out any
		if err := yaml.Unmarshal(data, &out); err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func newDemosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demos",
		Short: "List available demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var demos []map[string]any
			if err := getClient(cmd).do(cmd.Context(), http.MethodGet, "/api/demos", nil, &demos); err != nil {
				return err
			}
			return printResult(cmd, demos)
		},
	}
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo <demo-id>",
		Short: "Show one demo and its parameter schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var demo map[string]any
			if err := getClient(cmd).do(cmd.Context(), http.MethodGet, "/api/demos/"+url.PathEscape(args[0]), nil, &demo); err != nil {
				return err
			}
			return printResult(cmd, demo)
		},
	}
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <demo-id>",
		Short: "Submit a demo job",
		Long:  `Submit a demo job with JSON parameters, optionally waiting until it finishes`,
		Args:  cobra.ExactArgs(1),
		RunE:  runSubmit,
	}

	cmd.Flags().StringP("params", "p", "{}", "Demo parameters as a JSON object")
	cmd.Flags().BoolP("wait", "w", false, "Poll until the job reaches a terminal status")
	cmd.Flags().Duration("interval", time.Second, "Polling interval with --wait")
	cmd.Flags().Duration("timeout", 5*time.Minute, "Give up waiting after this long")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("params")
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return fmt.Errorf("--params must be a JSON object: %w", err)
	}

	client := getClient(cmd)
	var job map[string]any
	body := map[string]any{"demo_id": args[0], "parameters": params}
	if err := client.do(cmd.Context(), http.MethodPost, "/api/jobs", body, &job); err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		return printResult(cmd, job)
	}

	id, _ := job["job_id"].(string)
	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	final, err := waitForJob(cmd, client, id, interval, timeout)
	if err != nil {
		return err
	}
	if err := printResult(cmd, final); err != nil {
		return err
	}
	if status := final["status"]; status != "completed" {
		return fmt.Errorf("job %s finished with status %v", id, status)
	}
	return nil
}

func waitForJob(cmd *cobra.Command, client *Client, id string, interval, timeout time.Duration) (map[string]any, error) {
	deadline := time.Now().Add(timeout)
	for {
		var job map[string]any
		if err := client.do(cmd.Context(), http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
			return nil, err
		}
		if status, _ := job["status"].(string); terminalStatuses[status] {
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("job %s still %v after %s", id, job["status"], timeout)
		}

		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-time.After(interval):
		}
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Get job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job map[string]any
			if err := getClient(cmd).do(cmd.Context(), http.MethodGet, "/api/jobs/"+url.PathEscape(args[0]), nil, &job); err != nil {
				return err
			}
			return printResult(cmd, job)
		},
	}
}
