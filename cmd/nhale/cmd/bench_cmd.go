package cmd

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/util"
)

var (
	bThreads   int
	bInputSize int
	bOpts      embedFlags
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "measure embed and extract throughput on generated carriers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bOpts.config()
		if err != nil {
			return err
		}
		depth, err := cfg.Parameters.BitDepth()
		if err != nil {
			return err
		}
		logger.Infof("Running benchmark with %s payloads and %d threads",
			util.FormatSize(int64(bInputSize)), bThreads)

		benches := []struct {
			name string
			run  func(payload []byte) error
		}{
			{"lsb", func(payload []byte) error {
				// Square image with room for the payload and envelope.
				side := int(math.Ceil(math.Sqrt(float64((len(payload)+512)*8/depth)))) + 1
				img := image.NewNRGBA(image.Rect(0, 0, side, side))
				stego, err := encoder.EmbedImage(img, payload, cfg)
				if err != nil {
					return err
				}
				out, err := encoder.ExtractImage(stego, cfg)
				return check(payload, out, err)
			}},
			{"blockparity", func(payload []byte) error {
				// Reed-Solomon parity and the envelope fit in twice the payload.
				blocks := (2*len(payload) + 512) * 8
				side := (int(math.Ceil(math.Sqrt(float64(blocks)))) + 1) * blockparity.BlockSize
				plane := blockparity.NewPlane(side, side, 3)
				for i := range plane.Pix {
					plane.Pix[i] = 128
				}
				stego, err := encoder.EmbedBlocks(plane, payload, cfg)
				if err != nil {
					return err
				}
				out, err := encoder.ExtractBlocks(stego, cfg)
				return check(payload, out, err)
			}},
		}

		for _, b := range benches {
			var durations []time.Duration
			var lock sync.Mutex
			var wg sync.WaitGroup
			for i := 0; i < bThreads; i++ {
				wg.Add(1)
				go func(seed int64) {
					defer wg.Done()
					payload := util.RandomBytes(bInputSize, seed)
					start := time.Now()
					if err := b.run(payload); err != nil {
						logger.WithError(err).WithField("bench", b.name).Error("benchmark run failed")
						return
					}
					lock.Lock()
					durations = append(durations, time.Since(start))
					lock.Unlock()
				}(int64(i))
			}
			wg.Wait()

			if len(durations) == 0 {
				return errorx.New(errorx.Internal, "every %s run failed", b.name)
			}
			var total time.Duration
			for _, d := range durations {
				total += d
			}
			avg := total / time.Duration(len(durations))
			speed := int64(float64(bInputSize) * float64(len(durations)) / avg.Seconds())
			fmt.Printf("%-12s average %v, speed %s/s\n", b.name, avg, util.FormatSize(speed))
		}
		return nil
	},
}

func check(want, got []byte, err error) error {
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("extracted payload differs from the embedded one")
	}
	return nil
}

func init() {
	benchCmd.Flags().IntVar(&bThreads, "threads", 1, "number of threads")
	benchCmd.Flags().IntVar(&bInputSize, "input-size", 4*1024, "payload size in bytes")
	bOpts.register(benchCmd)
}
