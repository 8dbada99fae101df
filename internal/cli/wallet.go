package cli

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/vitwit/nftbuy/wallet"
)

const (
	envPrivateKey       = "NFTBUY_PRIVATE_KEY"
	envKeystorePassword = "NFTBUY_KEYSTORE_PASSWORD"
)

// keyProvider opens the signing key. It returns a nil provider when no key
// is configured, which Connect reports as a missing wallet.
func keyProvider(ctx context.Context, a *app) (wallet.Provider, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)

	switch {
	case strings.TrimSpace(os.Getenv(envPrivateKey)) != "":
		key, err = wallet.ParsePrivateKey(os.Getenv(envPrivateKey))
	case a.keystore != "":
		var passphrase string
		passphrase, err = readPassphrase(a.keystore)
		if err != nil {
			return nil, err
		}
		key, err = wallet.LoadKeystore(a.keystore, passphrase)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return wallet.NewKeyProvider(key,
		wallet.WithLogger(a.log),
		wallet.WithPollInterval(a.cfg.Purchase.PollInterval),
	)
}

func readPassphrase(path string) (string, error) {
	if pass, ok := os.LookupEnv(envKeystorePassword); ok {
		return pass, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keystore passphrase required: set %s", envKeystorePassword)
	}

	fmt.Fprintf(os.Stderr, "Passphrase for %s: ", path)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pass), nil
}
