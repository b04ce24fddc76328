package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/ioprogress"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/OhanaFS/nhale"
	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/errorx"
)

// embedFlags are shared by every command that reads or writes a carrier.
type embedFlags struct {
	password string
	encrypt  bool
	identity string
	format   string
	params   []string
}

func (f *embedFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.password, "password", "", "encryption password")
	fs.BoolVar(&f.encrypt, "encrypt", false, "encrypt, prompting for a password if none is given")
	fs.StringVar(&f.identity, "identity", "", "RSA key identity for --algorithm rsa")
	fs.StringVar(&f.format, "format", "", "carrier format, detected from the file when empty")
	fs.StringArrayVarP(&f.params, "param", "p", nil, "extra KEY=value parameter, repeatable")
	fs.String("algorithm", "aes256", "encryption algorithm: aes256, chacha20 or rsa")
	fs.Int("bit-depth", nhale.DefaultBitDepth, "bits per channel for pixel carriers (1-4)")
	fs.Int("compression", nhale.DefaultCompression, "compression level (0-9)")
	fs.String("compress", "none", "payload compression: none or zstd")
	fs.String("erasure", nhale.ErasureReedSolomon, "erasure code for JPEG carriers: reedsolomon, parity or none")
}

// config builds the embedding config from the loaded settings and flags.
// Parameters given with --param win over everything else.
func (f *embedFlags) config() (*nhale.EmbeddingConfig, error) {
	alg, err := envelope.ParseAlgorithm(conf.Embed.Algorithm)
	if err != nil {
		return nil, err
	}
	params := conf.Parameters()
	if f.format != "" {
		params[nhale.ParamFormat] = f.format
	}
	for _, kv := range f.params {
		k, v, err := nhale.ParseParameter(kv)
		if err != nil {
			return nil, err
		}
		params[k] = v
	}

	cfg := &nhale.EmbeddingConfig{
		UseEncryption: f.encrypt || f.password != "" || (alg == envelope.RSA && f.identity != ""),
		Password:      f.password,
		Algorithm:     alg,
		Identity:      f.identity,
		Parameters:    params,
	}
	if cfg.UseEncryption && alg != envelope.RSA && cfg.Password == "" {
		if cfg.Password, err = readPassword(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errorx.New(errorx.InvalidInput, "no password given and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errorx.Wrap(err, errorx.Io, "failed to read password")
	}
	if len(pw) == 0 {
		return "", errorx.New(errorx.InvalidInput, "empty password")
	}
	return string(pw), nil
}

// readPayload reads a payload file, drawing progress on stderr when it is a
// terminal.
func readPayload(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Io, "failed to open %s", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Io, "failed to stat %s", path)
	}

	var r io.Reader = f
	if term.IsTerminal(int(os.Stderr.Fd())) {
		r = &ioprogress.Reader{
			Reader:   f,
			Size:     st.Size(),
			DrawFunc: ioprogress.DrawTerminalf(os.Stderr, ioprogress.DrawTextFormatBytes),
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Io, "failed to read %s", path)
	}
	return data, nil
}
