// guardrailctl manages the guardrails of a running voice call server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/voicecall/internal/guardrails"
)

const defaultServer = "http://localhost:8001"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// client talks to the guardrail endpoints of one server.
type client struct {
	base string
	http *http.Client
	out  io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &client{http: &http.Client{Timeout: 30 * time.Second}, out: out}

	root := &cobra.Command{
		Use:          "guardrailctl",
		Short:        "Manage voice assistant guardrails",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			c.base = strings.TrimRight(c.base, "/")
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.base, "server", defaultServer, "base URL of the voice call server")

	root.AddCommand(
		&cobra.Command{
			Use:   "upload FILE",
			Short: "Replace all guardrails with the entries in a YAML or JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entries, err := guardrails.LoadFile(args[0])
				if err != nil {
					return err
				}
				return c.do(cmd.Context(), http.MethodPost, "/upload-guardrails", map[string]any{"guardrails": entries})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List guardrails with their indices",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.do(cmd.Context(), http.MethodGet, "/guardrails", nil)
			},
		},
		newDeleteCmd(c),
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every guardrail",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.do(cmd.Context(), http.MethodDelete, "/guardrails", nil)
			},
		},
	)
	return root
}

func newDeleteCmd(c *client) *cobra.Command {
	var (
		index    int
		question string
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one guardrail by index or by question text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("index") {
				return c.do(cmd.Context(), http.MethodDelete, "/guardrails/"+strconv.Itoa(index), nil)
			}
			return c.do(cmd.Context(), http.MethodPost, "/guardrails/delete", map[string]string{"question": question})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "index of the guardrail to delete")
	cmd.Flags().StringVar(&question, "question", "", "question text to match")
	cmd.MarkFlagsMutuallyExclusive("index", "question")
	cmd.MarkFlagsOneRequired("index", "question")
	return cmd
}

// do sends one request and prints the indented JSON response. Non-2xx
// responses are printed too and reported as an error.
func (c *client) do(ctx context.Context, method, path string, body any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Fprintln(c.out, string(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
