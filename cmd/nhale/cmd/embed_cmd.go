package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/util"
)

var (
	embedInput   string
	embedOutput  string
	embedData    string
	embedMessage string
	embedOpts    embedFlags
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "hide a payload in a carrier file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (embedData == "") == (embedMessage == "") {
			return errorx.New(errorx.InvalidInput, "specify exactly one of --data or --message")
		}
		payload := []byte(embedMessage)
		if embedData != "" {
			var err error
			if payload, err = readPayload(embedData); err != nil {
				return err
			}
		}

		cfg, err := embedOpts.config()
		if err != nil {
			return err
		}
		if err := encoder.Embed(embedInput, embedOutput, payload, cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "embedded %s into %s\n", util.FormatSize(int64(len(payload))), embedOutput)
		return nil
	},
}

func init() {
	embedCmd.Flags().StringVarP(&embedInput, "input", "i", "", "carrier file")
	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "output file")
	embedCmd.Flags().StringVarP(&embedData, "data", "d", "", "file to embed")
	embedCmd.Flags().StringVarP(&embedMessage, "message", "m", "", "text to embed")
	embedOpts.register(embedCmd)

	embedCmd.MarkFlagRequired("input")
	embedCmd.MarkFlagRequired("output")
}
