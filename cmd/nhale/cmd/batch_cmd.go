package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale"
	"github.com/OhanaFS/nhale/errorx"
)

var (
	batchOutDir  string
	batchData    string
	batchExtract bool
	batchOpts    embedFlags
)

var batchCmd = &cobra.Command{
	Use:   "batch FILE...",
	Short: "embed one payload into many carriers, or extract from many",
	Long: "Embed the --data payload into every carrier, writing each result to --out-dir " +
		"under the same name. With --extract, payloads are extracted to --out-dir instead.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := batchOpts.config()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return errorx.Wrap(err, errorx.Io, "failed to create %s", batchOutDir)
		}

		var payload []byte
		if !batchExtract {
			if batchData == "" {
				return errorx.New(errorx.InvalidInput, "--data is required unless --extract is set")
			}
			if payload, err = readPayload(batchData); err != nil {
				return err
			}
		}

		jobs := make([]nhale.Job, len(args))
		for i, in := range args {
			out := filepath.Join(batchOutDir, filepath.Base(in))
			if batchExtract {
				out += ".bin"
			}
			jobs[i] = nhale.Job{ID: in, Input: in, Output: out, Payload: payload, Config: cfg}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		run := encoder.EmbedBatch
		if batchExtract {
			run = encoder.ExtractBatch
		}
		results, err := run(ctx, jobs, conf.Batch.Concurrency)
		if err != nil {
			return err
		}

		failed := 0
		for i, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("%s: FAILED: %v\n", r.ID, r.Err)
				continue
			}
			fmt.Printf("%s: ok -> %s\n", r.ID, jobs[i].Output)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "out", "directory for the results")
	batchCmd.Flags().StringVarP(&batchData, "data", "d", "", "file to embed")
	batchCmd.Flags().BoolVar(&batchExtract, "extract", false, "extract instead of embedding")
	batchCmd.Flags().Int("concurrency", nhale.DefaultConcurrency, "jobs run at once")
	batchOpts.register(batchCmd)
}
