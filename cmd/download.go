package cmd

import (
	"errors"

	"github.com/creativeprojects/mailstrip/engine"
	"github.com/creativeprojects/mailstrip/term"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download <account>",
	Short: "Download attachments without touching the messages on the server",
	RunE:  runDownload,
}

type downloadFlags struct {
	sizeFlags
	folders        []string
	all            bool
	noCache        bool
	target         string
	bandwidthLimit float64
}

var downloadFlag downloadFlags

func init() {
	rootCmd.AddCommand(downloadCmd)
	flag := downloadCmd.Flags()
	addSizeFlags(flag, &downloadFlag.sizeFlags)
	flag.StringArrayVarP(&downloadFlag.folders, "folder", "f", nil, "folder to process (can be repeated, defaults to the account folders)")
	flag.BoolVarP(&downloadFlag.all, "all", "a", false, "process all folders except the well-known system ones")
	flag.BoolVar(&downloadFlag.noCache, "no-cache", false, "don't remember downloaded messages, a later run will examine them again")
	flag.StringVarP(&downloadFlag.target, "target", "t", "", "directory where the attachments are saved")
	flag.Float64Var(&downloadFlag.bandwidthLimit, "bandwidth-limit", 0, "limit the IMAP transfer rate, in KiB per second")
}

func runDownload(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("missing account name")
	}
	account, err := getAccount(args[0])
	if err != nil {
		return err
	}
	threshold, err := downloadFlag.threshold()
	if err != nil {
		return err
	}

	options := engine.Options{
		Folders:        folderList(account, downloadFlag.folders),
		AllFolders:     downloadFlag.all,
		Threshold:      threshold,
		Download:       true,
		CacheDownloads: !downloadFlag.noCache,
	}
	report, err := runEngine(cmd, account, options, downloadFlag.target, downloadFlag.bandwidthLimit)
	if err != nil {
		return err
	}
	term.Infof("%d messages in %d folders: %d skipped, %d attachments saved",
		report.Messages, report.Folders, report.Skipped, report.Downloaded)
	return reportErrors(report)
}
