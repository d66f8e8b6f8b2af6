// Command jmapd is the process entrypoint: it loads configuration, opens
// the backing store, wires every data type's handler onto a Registry,
// and dispatches JSON method-call batches read from stdin or a file.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brandon/jmap-core/internal/config"
	"github.com/brandon/jmap-core/internal/jmap"
)

var (
	version   = "dev"
	batchPath string
)

var rootCmd = &cobra.Command{
	Use:   "jmapd",
	Short: "JMAP-style dispatch core for a local mail, calendar, and contacts store",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch a methodCalls batch read from stdin (or --batch) and print the response envelope",
	RunE:  runBatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("jmapd version " + version)
	},
}

func init() {
	runCmd.Flags().StringVar(&batchPath, "batch", "", "Path to a JSON methodCalls batch file (default: read from stdin)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// wireCall and wireResponse are this command's on-disk JSON shape for a
// method-call batch: a plain object envelope rather than JMAP's (name,
// args, callTag) array-tuple wire format, since jmapd is a local batch
// runner rather than an HTTP endpoint speaking the full transport.
type wireCall struct {
	Name    string                 `json:"name"`
	Args    map[string]interface{} `json:"args"`
	CallTag string                 `json:"callTag"`
}

type wireEnvelope struct {
	MethodCalls []wireCall `json:"methodCalls"`
}

type wireResponse struct {
	Name    string      `json:"name"`
	Result  interface{} `json:"result"`
	CallTag string      `json:"callTag"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	reg, s, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to wire registry: %w", err)
	}
	defer s.Close()

	raw, err := readBatchInput()
	if err != nil {
		return err
	}

	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to parse methodCalls batch: %w", err)
	}

	req := jmap.Request{MethodCalls: make([]jmap.MethodCall, len(env.MethodCalls))}
	for i, c := range env.MethodCalls {
		req.MethodCalls[i] = jmap.MethodCall{Name: c.Name, Args: c.Args, CallTag: c.CallTag}
	}

	resp := reg.Dispatch(req)

	out := make([]wireResponse, len(resp.MethodResponses))
	for i, r := range resp.MethodResponses {
		out[i] = wireResponse{Name: r.Name, Result: r.Result, CallTag: r.CallTag}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(wireOutput{MethodResponses: out})
}

type wireOutput struct {
	MethodResponses []wireResponse `json:"methodResponses"`
}

func readBatchInput() ([]byte, error) {
	if batchPath != "" {
		data, err := os.ReadFile(batchPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch from stdin: %w", err)
	}
	return data, nil
}
