package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale/util"
)

var capacityOpts embedFlags

var capacityCmd = &cobra.Command{
	Use:   "capacity FILE...",
	Short: "show how large a payload each carrier can hold",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := capacityOpts.config()
		if err != nil {
			return err
		}
		for _, path := range args {
			n, err := encoder.Capacity(path, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%d bytes)\n", path, util.FormatSize(int64(n)), n)
		}
		return nil
	},
}

func init() {
	capacityOpts.register(capacityCmd)
}
