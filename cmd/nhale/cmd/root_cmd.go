package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale"
	"github.com/OhanaFS/nhale/config"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
	"github.com/OhanaFS/nhale/logging"
)

var (
	configPath string

	conf     *config.Config
	logger   *logrus.Logger
	provider keys.Provider
	encoder  *nhale.Encoder
)

var rootCmd = &cobra.Command{
	Use:               "nhale",
	Short:             "hide data inside images and PDF documents",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if c, ok := provider.(io.Closer); ok {
			return c.Close()
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a config file")
	pf.String("log-level", "info", "log level")
	pf.String("keys-backend", "ephemeral", "RSA key store: ephemeral, memory, dir or leveldb")
	pf.String("keys-path", "", "directory of the dir or leveldb key store")
	pf.Int("data-shards", 10, "Reed-Solomon data shards for JPEG carriers")
	pf.Int("parity-shards", 4, "Reed-Solomon parity shards for JPEG carriers")

	rootCmd.AddCommand(embedCmd, extractCmd, verifyCmd, rotateCmd, batchCmd,
		keygenCmd, benchCmd, capacityCmd, watermarkCmd, verifyWatermarkCmd, detectCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if conf, err = config.Load(nil, configPath, cmd.Flags()); err != nil {
		return err
	}
	if logger, err = logging.New(&conf.Log, "nhale.log"); err != nil {
		return err
	}
	if provider, err = keys.Open(conf.Keys.Backend, conf.Keys.Path, nil); err != nil {
		return errorx.Wrap(err, errorx.InvalidInput, "failed to open key store")
	}
	encoder = nhale.NewEncoder(&nhale.EncoderOptions{
		Logger:      logger,
		Keys:        provider,
		ReedSolomon: conf.ReedSolomonOptions(),
		Parity:      conf.ParityOptions(),
	})
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errorx.Is(err, errorx.InvalidInput) {
			return 2
		}
		return 1
	}
	return 0
}
