// Package config loads nhale settings from a config file, NHALE_*
// environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OhanaFS/nhale"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/logging"
	"github.com/OhanaFS/nhale/parity"
	"github.com/OhanaFS/nhale/reedsolomon"
)

const EnvPrefix = "NHALE"

type Config struct {
	Log         logging.Config `mapstructure:"log"`
	Embed       Embed          `mapstructure:"embed"`
	ReedSolomon ReedSolomon    `mapstructure:"reedsolomon"`
	Parity      Parity         `mapstructure:"parity"`
	Keys        Keys           `mapstructure:"keys"`
	Batch       Batch          `mapstructure:"batch"`
}

type Embed struct {
	BitDepth    int    `mapstructure:"bit_depth"`
	Algorithm   string `mapstructure:"algorithm"`
	Compression int    `mapstructure:"compression"`
	Compress    string `mapstructure:"compress"`
	Erasure     string `mapstructure:"erasure"`
}

type ReedSolomon struct {
	DataShards   int  `mapstructure:"data_shards"`
	ParityShards int  `mapstructure:"parity_shards"`
	Checksum     bool `mapstructure:"checksum"`
}

type Parity struct {
	Ratio    int  `mapstructure:"ratio"`
	Checksum bool `mapstructure:"checksum"`
}

type Keys struct {
	// Backend is one of ephemeral, memory, dir or leveldb.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type Batch struct {
	Concurrency int `mapstructure:"concurrency"`
}

var defaults = map[string]interface{}{
	"log.level":                 "info",
	"log.path":                  "",
	"embed.bit_depth":           nhale.DefaultBitDepth,
	"embed.algorithm":           "aes256",
	"embed.compression":         nhale.DefaultCompression,
	"embed.compress":            "none",
	"embed.erasure":             nhale.ErasureReedSolomon,
	"reedsolomon.data_shards":   10,
	"reedsolomon.parity_shards": 4,
	"reedsolomon.checksum":      true,
	"parity.ratio":              8,
	"parity.checksum":           true,
	"keys.backend":              "ephemeral",
	"keys.path":                 "",
	"batch.concurrency":         nhale.DefaultConcurrency,
}

// Flags maps command line flag names to the keys they override.
var Flags = map[string]string{
	"log-level":     "log.level",
	"bit-depth":     "embed.bit_depth",
	"algorithm":     "embed.algorithm",
	"compression":   "embed.compression",
	"compress":      "embed.compress",
	"erasure":       "embed.erasure",
	"data-shards":   "reedsolomon.data_shards",
	"parity-shards": "reedsolomon.parity_shards",
	"keys-backend":  "keys.backend",
	"keys-path":     "keys.path",
	"concurrency":   "batch.concurrency",
}

// Load reads the configuration. path may be empty to skip the config file,
// and flags may be nil. Flags named in Flags override their keys when set.
func Load(fs afero.Fs, path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if fs != nil {
		v.SetFs(fs)
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("embed.compression", EnvPrefix+"_COMPRESSION"); err != nil {
		return nil, errorx.Wrap(err, errorx.Internal, "failed to bind environment")
	}

	if flags != nil {
		for name, key := range Flags {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errorx.Wrap(err, errorx.Internal, "failed to bind flag %s", name)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to read config %s", path)
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to parse config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := c.Parameters().BitDepth(); err != nil {
		return err
	}
	if _, err := c.Parameters().Compression(); err != nil {
		return err
	}
	if _, err := c.Parameters().Compress(); err != nil {
		return err
	}
	if _, err := c.Parameters().Erasure(); err != nil {
		return err
	}
	if c.ReedSolomon.DataShards < 1 || c.ReedSolomon.ParityShards < 1 ||
		c.ReedSolomon.DataShards+c.ReedSolomon.ParityShards > 256 {
		return errorx.New(errorx.InvalidInput,
			"invalid shard counts %d/%d, both must be positive and total at most 256",
			c.ReedSolomon.DataShards, c.ReedSolomon.ParityShards)
	}
	if c.Parity.Ratio < 1 || c.Parity.Ratio > 255 {
		return errorx.New(errorx.InvalidInput, "parity ratio must be between 1 and 255, got %d", c.Parity.Ratio)
	}
	if c.Batch.Concurrency < 1 {
		return errorx.New(errorx.InvalidInput, "batch concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	return nil
}

// Parameters returns the embedding parameters implied by the config.
func (c *Config) Parameters() nhale.Parameters {
	return nhale.Parameters{
		nhale.ParamBitDepth:    strconv.Itoa(c.Embed.BitDepth),
		nhale.ParamCompression: strconv.Itoa(c.Embed.Compression),
		nhale.ParamCompress:    c.Embed.Compress,
		nhale.ParamErasure:     c.Embed.Erasure,
	}
}

func (c *Config) ReedSolomonOptions() *reedsolomon.Options {
	return &reedsolomon.Options{
		DataShards:   uint8(c.ReedSolomon.DataShards),
		ParityShards: uint8(c.ReedSolomon.ParityShards),
		UseChecksum:  c.ReedSolomon.Checksum,
	}
}

func (c *Config) ParityOptions() *parity.Options {
	return &parity.Options{
		Ratio:       uint8(c.Parity.Ratio),
		UseChecksum: c.Parity.Checksum,
	}
}
