package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/creativeprojects/mailstrip/cache"
	"github.com/creativeprojects/mailstrip/cfg"
	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/remote"
)

const passwordEnv = "MAILSTRIP_PASSWORD"

func getAccount(name string) (cfg.Account, error) {
	account, ok := config.Accounts[name]
	if !ok {
		return account, fmt.Errorf("account not found: %s", name)
	}
	if account.Password == "" {
		account.Password = os.Getenv(passwordEnv)
	}
	if account.Password == "" {
		return account, fmt.Errorf("no password for account %s: set it in the configuration or through %s", name, passwordEnv)
	}
	return account, nil
}

func openAccount(account cfg.Account, bandwidthLimit float64) (*remote.Imap, error) {
	return remote.NewImap(remote.Config{
		ServerURL:           account.ServerURL,
		Username:            account.Username,
		Password:            account.Password,
		SkipTLSVerification: account.SkipTLSVerification,
		DebugLogger:         debugLogger(),
		BandwidthLimit:      bandwidthLimit,
	})
}

// openCache opens the processed cache of this account, one bolt file
// per account under the cache directory.
func openCache(account cfg.Account) (*cache.Cache, error) {
	dir := config.CacheDir
	if dir == "" {
		userDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cannot locate the user cache directory: %w", err)
		}
		dir = filepath.Join(userDir, "mailstrip")
	}
	filename := filepath.Join(dir, lib.AccountTag(account.ServerURL, account.Username)+".db")
	return cache.OpenWithLogger(filename, debugLogger())
}

func debugLogger() lib.Logger {
	if global.verbose {
		return log.Default()
	}
	return &lib.NoLog{}
}
