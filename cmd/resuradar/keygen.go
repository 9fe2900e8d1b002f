package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate ENCRYPTION_KEY and JWT_SECRET values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		encKey, err := encryptionKey()
		if err != nil {
			return err
		}
		jwtSecret, err := randomSecret(48)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ENCRYPTION_KEY=%s\nJWT_SECRET=%s\n", encKey, jwtSecret)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

// encryptionKey returns 32 hex characters, used as the raw 32-byte AES-256 key.
func encryptionKey() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
