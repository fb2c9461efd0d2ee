package cmd

import (
	"errors"
	"fmt"

	"github.com/creativeprojects/mailstrip/cfg"
	"github.com/creativeprojects/mailstrip/content"
	"github.com/creativeprojects/mailstrip/engine"
	"github.com/creativeprojects/mailstrip/mimetree"
	"github.com/creativeprojects/mailstrip/term"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var detachCmd = &cobra.Command{
	Use:   "detach <account>",
	Short: "Download attachments and replace them with a placeholder on the server",
	RunE:  runDetach,
}

type sizeFlags struct {
	largerThan  int
	smallerThan int
}

type detachFlags struct {
	sizeFlags
	folders        []string
	all            bool
	skipDownload   bool
	dryRun         bool
	target         string
	bandwidthLimit float64
}

var detachFlag detachFlags

func init() {
	rootCmd.AddCommand(detachCmd)
	flag := detachCmd.Flags()
	addSizeFlags(flag, &detachFlag.sizeFlags)
	flag.StringArrayVarP(&detachFlag.folders, "folder", "f", nil, "folder to process (can be repeated, defaults to the account folders)")
	flag.BoolVarP(&detachFlag.all, "all", "a", false, "process all folders except the well-known system ones")
	flag.BoolVar(&detachFlag.skipDownload, "skip-download", false, "don't save the attachments, only strip them from the messages")
	flag.BoolVar(&detachFlag.dryRun, "dry-run", false, "don't change anything on the server")
	flag.StringVarP(&detachFlag.target, "target", "t", "", "directory where the attachments are saved")
	flag.Float64Var(&detachFlag.bandwidthLimit, "bandwidth-limit", 0, "limit the IMAP transfer rate, in KiB per second")
}

func runDetach(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("missing account name")
	}
	account, err := getAccount(args[0])
	if err != nil {
		return err
	}
	threshold, err := detachFlag.threshold()
	if err != nil {
		return err
	}

	options := engine.Options{
		Folders:    folderList(account, detachFlag.folders),
		AllFolders: detachFlag.all,
		Threshold:  threshold,
		Download:   !detachFlag.skipDownload,
		Detach:     true,
		ReadOnly:   detachFlag.dryRun,
	}
	report, err := runEngine(cmd, account, options, detachFlag.target, detachFlag.bandwidthLimit)
	if err != nil {
		return err
	}
	term.Infof("%d messages in %d folders: %d skipped, %d attachments saved, %d messages rewritten",
		report.Messages, report.Folders, report.Skipped, report.Downloaded, report.Rewritten)
	return reportErrors(report)
}

// runEngine connects to the account and runs the attachment policy,
// shared by the detach and download commands.
func runEngine(cmd *cobra.Command, account cfg.Account, options engine.Options, target string, bandwidthLimit float64) (*engine.Report, error) {
	if target == "" {
		target = account.TargetDir
	}
	store, err := content.NewStoreWithLogger(target, debugLogger())
	if err != nil {
		return nil, err
	}

	processed, err := openCache(account)
	if err != nil {
		return nil, fmt.Errorf("cannot open the processed cache: %w", err)
	}
	defer processed.Close()

	transport, err := openAccount(account, bandwidthLimit*1024)
	if err != nil {
		return nil, err
	}
	defer transport.Close()

	progress := newFolderProgress()
	defer progress.stop()
	options.Progress = progress.update

	runner := engine.New(transport, processed, store, options, debugLogger())
	return runner.Run(cmd.Context())
}

func folderList(account cfg.Account, override []string) []string {
	if len(override) > 0 {
		return override
	}
	return account.Folders
}

func reportErrors(report *engine.Report) error {
	for _, err := range report.Errors {
		term.Errorf("%s", err)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("completed with %d errors", len(report.Errors))
	}
	return nil
}

func addSizeFlags(flag *pflag.FlagSet, size *sizeFlags) {
	flag.IntVar(&size.largerThan, "larger-than", 100, "process attachments larger than this size, in KiB")
	flag.IntVar(&size.smallerThan, "smaller-than", 0, "process attachments smaller than this size instead, in KiB")
}

func (s *sizeFlags) threshold() (mimetree.Threshold, error) {
	if s.smallerThan > 0 {
		return mimetree.Threshold{Op: mimetree.Below, Bytes: int64(s.smallerThan) * 1024}, nil
	}
	if s.largerThan <= 0 {
		return mimetree.Threshold{}, errors.New("the size threshold must be positive")
	}
	return mimetree.Threshold{Op: mimetree.Above, Bytes: int64(s.largerThan) * 1024}, nil
}
