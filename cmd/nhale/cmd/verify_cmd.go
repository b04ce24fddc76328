package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale/util"
)

var verifyOpts embedFlags

var verifyCmd = &cobra.Command{
	Use:   "verify FILE...",
	Short: "check carriers for a readable payload without decrypting it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := verifyOpts.config()
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range args {
			r, err := encoder.Verify(path, cfg)
			if err != nil {
				return err
			}
			status := "OK"
			if !r.AllGood {
				status = "PROBLEM"
				failed++
			}
			fmt.Printf("%s: %s (%v", path, status, r.Format)
			if r.Capacity > 0 {
				fmt.Printf(", capacity %s", util.FormatSize(int64(r.Capacity)))
			}
			if r.HasPayload {
				fmt.Printf(", payload %s", util.FormatSize(int64(r.Length)))
			}
			fmt.Println(")")
			if r.Frame != nil {
				fmt.Printf("  frame: %v, missing %v, repaired %v, bad blocks %v\n",
					r.Frame.Layer, r.Frame.Missing, r.Frame.Repaired, r.Frame.BadBlocks)
			}
			for _, p := range r.Problems {
				fmt.Printf("  - %s\n", p)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d carriers have problems", failed, len(args))
		}
		return nil
	},
}

func init() {
	verifyOpts.register(verifyCmd)
}
