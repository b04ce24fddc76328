package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	watermarkInput  string
	watermarkOutput string
	watermarkText   string
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "add a watermark to a carrier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return encoder.EmbedWatermark(watermarkInput, watermarkOutput, watermarkText)
	},
}

var verifyWatermarkCmd = &cobra.Command{
	Use:   "verify-watermark",
	Short: "check a carrier for a watermark",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := encoder.VerifyWatermark(watermarkInput, watermarkText)
		if err != nil {
			return err
		}
		fmt.Printf("%s: watermark present: %v\n", watermarkInput, ok)
		return nil
	},
}

var detectOpts embedFlags

var detectCmd = &cobra.Command{
	Use:   "detect FILE...",
	Short: "report whether carriers hold a payload",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := detectOpts.config()
		if err != nil {
			return err
		}
		for _, path := range args {
			r, err := encoder.Verify(path, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %v, payload found: %v\n", path, r.Format, r.HasPayload)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{watermarkCmd, verifyWatermarkCmd} {
		c.Flags().StringVarP(&watermarkInput, "input", "i", "", "carrier file")
		c.Flags().StringVarP(&watermarkText, "text", "t", "", "watermark text")
		c.MarkFlagRequired("input")
	}
	watermarkCmd.Flags().StringVarP(&watermarkOutput, "output", "o", "", "output file")
	watermarkCmd.MarkFlagRequired("output")
	detectOpts.register(detectCmd)
}
