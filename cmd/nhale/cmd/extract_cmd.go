package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/util"
)

var (
	extractInput  string
	extractOutput string
	extractOpts   embedFlags
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "recover a hidden payload",
	Long:  "Recover a hidden payload. It is written to --output, or to stdout when no output is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := extractOpts.config()
		if err != nil {
			return err
		}
		data, err := encoder.Extract(extractInput, cfg)
		if err != nil {
			return err
		}

		if extractOutput == "" {
			if _, err := os.Stdout.Write(data); err != nil {
				return errorx.Wrap(err, errorx.Io, "failed to write payload")
			}
			return nil
		}
		if err := os.WriteFile(extractOutput, data, 0o644); err != nil {
			return errorx.Wrap(err, errorx.Io, "failed to write %s", extractOutput)
		}
		fmt.Fprintf(os.Stderr, "extracted %s to %s\n", util.FormatSize(int64(len(data))), extractOutput)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "carrier file")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "file to write the payload to")
	extractOpts.register(extractCmd)

	extractCmd.MarkFlagRequired("input")
}
