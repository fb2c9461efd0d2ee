package cmd

import (
	"errors"

	"github.com/creativeprojects/mailstrip/cache"
	"github.com/creativeprojects/mailstrip/term"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the cache of processed messages",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info <account>",
	Short: "Display the number of messages remembered as processed",
	RunE:  runCacheInfo,
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset <account>",
	Short: "Forget all processed messages, the next run will examine everything again",
	RunE:  runCacheReset,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheResetCmd)
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	processed, err := openAccountCache(args)
	if err != nil {
		return err
	}
	defer processed.Close()

	term.Infof("%d messages recorded as processed", processed.Count())
	return nil
}

func runCacheReset(cmd *cobra.Command, args []string) error {
	processed, err := openAccountCache(args)
	if err != nil {
		return err
	}
	defer processed.Close()

	err = processed.Reset()
	if err != nil {
		return err
	}
	term.Info("cache cleared")
	return nil
}

// openAccountCache doesn't need the account password, so it bypasses
// getAccount on purpose.
func openAccountCache(args []string) (*cache.Cache, error) {
	if len(args) < 1 {
		return nil, errors.New("missing account name")
	}
	account, ok := config.Accounts[args[0]]
	if !ok {
		return nil, errors.New("account not found: " + args[0])
	}
	return openCache(account)
}
