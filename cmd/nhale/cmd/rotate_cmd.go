package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rotateInput       string
	rotateOutput      string
	rotateNewIdentity string
	rotateOpts        embedFlags
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "re-encrypt the key of an RSA envelope for another identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rotateOpts.config()
		if err != nil {
			return err
		}
		if err := encoder.RotateKeys(rotateInput, rotateOutput, cfg, rotateNewIdentity); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "rotated %s from %q to %q\n", rotateOutput, cfg.Identity, rotateNewIdentity)
		return nil
	},
}

func init() {
	rotateCmd.Flags().StringVarP(&rotateInput, "input", "i", "", "carrier file")
	rotateCmd.Flags().StringVarP(&rotateOutput, "output", "o", "", "output file")
	rotateCmd.Flags().StringVar(&rotateNewIdentity, "new-identity", "", "identity to rotate to")
	rotateOpts.register(rotateCmd)

	rotateCmd.MarkFlagRequired("input")
	rotateCmd.MarkFlagRequired("output")
	rotateCmd.MarkFlagRequired("identity")
	rotateCmd.MarkFlagRequired("new-identity")
}
