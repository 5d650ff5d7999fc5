package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// manifestEntry is one line of the JSONL manifest fed to the bulk loader.
type manifestEntry struct {
	ImageBase64 string            `json:"image_base64,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	AcquiredAt  string            `json:"acquired_at"`
}

var (
	serverURL   string
	concurrency int
	rps         float64
	dryRun      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingest-cli",
		Short: "Bulk-load image assets into the orchestrator",
	}

	runCmd := &cobra.Command{
		Use:   "run <manifest.jsonl>",
		Short: "Submit every manifest entry to the ingest endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}
	runCmd.Flags().StringVar(&serverURL, "server", "http://localhost:9020", "orchestrator base URL")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent submissions")
	runCmd.Flags().Float64Var(&rps, "rps", 5, "maximum submissions per second")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the manifest without submitting")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, manifestPath string) error {
	file, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	client := &http.Client{Timeout: 30 * time.Second}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var submitted, failed atomic.Int64
	lineNo := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		n := lineNo
		g.Go(func() error {
			var entry manifestEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				failed.Add(1)
				fmt.Fprintf(os.Stderr, "line %d: invalid JSON: %v\n", n, err)
				return nil
			}
			if _, err := time.Parse(time.RFC3339, entry.AcquiredAt); err != nil {
				failed.Add(1)
				fmt.Fprintf(os.Stderr, "line %d: acquired_at is not RFC3339: %v\n", n, err)
				return nil
			}
			if dryRun {
				submitted.Add(1)
				return nil
			}

			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			if err := submit(ctx, client, line); err != nil {
				failed.Add(1)
				fmt.Fprintf(os.Stderr, "line %d: %v\n", n, err)
				return nil
			}
			submitted.Add(1)
			return nil
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("Done. Submitted: %d, Failed: %d\n", submitted.Load(), failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d entries failed", failed.Load())
	}
	return nil
}

func submit(ctx context.Context, client *http.Client, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/internal/assets/ingest", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
