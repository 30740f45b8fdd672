package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/walletlens/client"
	"github.com/brojonat/walletlens/service/logging"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// jqFlag is shared by commands that print API responses.
var jqFlag = &cli.StringFlag{
	Name:  "jq",
	Usage: "jq expression applied to the JSON response (implies JSON output)",
}

// cliLogger writes diagnostics to stderr so stdout stays machine-readable.
func cliLogger(c *cli.Context) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(c.String("log-level")),
	}))
}

func newAPIClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, cliLogger(c))
}

// compileJQ parses and compiles a jq expression. An empty expression yields nil.
func compileJQ(expr string) (*gojq.Code, error) {
	if expr == "" {
		return nil, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// writeJSON prints v as indented JSON, or every result of code run against v.
func writeJSON(w io.Writer, v interface{}, code *gojq.Code) error {
	if code == nil {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	// gojq only accepts plain JSON values, so round-trip through encoding/json.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := gojq.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
}

// emit prints v as JSON when --json or --jq is set, otherwise calls human.
func emit(c *cli.Context, v interface{}, human func(io.Writer)) error {
	code, err := compileJQ(c.String("jq"))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if w == nil {
		w = os.Stdout
	}
	if code != nil || c.Bool("json") {
		return writeJSON(w, v, code)
	}
	human(w)
	return nil
}

const rule = "─────────────────────────────────────────────────────"
