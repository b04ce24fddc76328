package cmd

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
)

var keygenList bool

var keygenCmd = &cobra.Command{
	Use:   "keygen IDENTITY...",
	Short: "create RSA keypairs in the configured key store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := provider.(keys.Ephemeral); ok {
			return errorx.New(errorx.InvalidInput, "keygen needs a persistent --keys-backend")
		}
		if keygenList {
			return listKeys()
		}
		if len(args) == 0 {
			return errorx.New(errorx.InvalidInput, "at least one identity is required")
		}
		for _, identity := range args {
			if _, _, err := provider.LoadOrGenerate(identity); err != nil {
				return errorx.Ensure(err, errorx.InvalidInput, "failed to create key %q", identity)
			}
			fp, err := fingerprint(identity)
			if err != nil {
				return err
			}
			fmt.Println(fp)
		}
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenList, "list", false, "list the identities in the key store")
}

// fingerprint formats the SHA-256 of the PKIX public key of identity.
func fingerprint(identity string) (string, error) {
	pub, _, err := provider.Load(identity)
	if err != nil {
		return "", errorx.Ensure(err, errorx.InvalidInput, "failed to load key %q", identity)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", errorx.Wrap(err, errorx.Encoding, "failed to encode public key")
	}
	return fmt.Sprintf("%s: SHA256:%x", identity, sha256.Sum256(der)), nil
}

func listKeys() error {
	lister, ok := provider.(keys.Lister)
	if !ok {
		return errorx.New(errorx.InvalidInput, "key store %q cannot list identities", conf.Keys.Backend)
	}
	ids, err := lister.Identities()
	if err != nil {
		return errorx.Ensure(err, errorx.Io, "failed to list identities")
	}
	for _, id := range ids {
		fp, err := fingerprint(id)
		if err != nil {
			return err
		}
		fmt.Println(fp)
	}
	return nil
}
