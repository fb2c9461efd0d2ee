package cmd

import (
	"errors"
	"fmt"

	"github.com/creativeprojects/mailstrip/archive"
	"github.com/creativeprojects/mailstrip/cfg"
	"github.com/creativeprojects/mailstrip/content"
	"github.com/creativeprojects/mailstrip/engine"
	"github.com/creativeprojects/mailstrip/term"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <account> <archive>",
	Short: "Upload messages from a local archive (eml, emlx or maildir) to the server",
	Long: "\nUpload messages from a local archive (eml, emlx or maildir) to the server." +
		"\nAttachments crossing the size threshold are stripped before the upload, like the detach command does.",
	RunE: runUpload,
}

type uploadFlags struct {
	sizeFlags
	folder          string
	keepAttachments bool
	skipDownload    bool
	dryRun          bool
	target          string
	bandwidthLimit  float64
}

var uploadFlag uploadFlags

func init() {
	rootCmd.AddCommand(uploadCmd)
	flag := uploadCmd.Flags()
	addSizeFlags(flag, &uploadFlag.sizeFlags)
	flag.StringVarP(&uploadFlag.folder, "folder", "f", cfg.DefaultFolder, "folder to upload the messages into")
	flag.BoolVar(&uploadFlag.keepAttachments, "keep-attachments", false, "upload the messages untouched, attachments included")
	flag.BoolVar(&uploadFlag.skipDownload, "skip-download", false, "don't save the stripped attachments, only remove them")
	flag.BoolVar(&uploadFlag.dryRun, "dry-run", false, "don't change anything on the server")
	flag.StringVarP(&uploadFlag.target, "target", "t", "", "directory where the attachments are saved")
	flag.Float64Var(&uploadFlag.bandwidthLimit, "bandwidth-limit", 0, "limit the IMAP transfer rate, in KiB per second")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("missing account name")
	} else if len(args) < 2 {
		return errors.New("missing archive path")
	}
	account, err := getAccount(args[0])
	if err != nil {
		return err
	}
	threshold, err := uploadFlag.threshold()
	if err != nil {
		return err
	}

	source, err := archive.NewReader(args[1], debugLogger())
	if err != nil {
		return err
	}
	defer source.Close()

	target := uploadFlag.target
	if target == "" {
		target = account.TargetDir
	}
	store, err := content.NewStoreWithLogger(target, debugLogger())
	if err != nil {
		return err
	}

	processed, err := openCache(account)
	if err != nil {
		return fmt.Errorf("cannot open the processed cache: %w", err)
	}
	defer processed.Close()

	transport, err := openAccount(account, uploadFlag.bandwidthLimit*1024)
	if err != nil {
		return err
	}
	defer transport.Close()

	options := engine.Options{
		Threshold: threshold,
		Detach:    !uploadFlag.keepAttachments,
		Download:  !uploadFlag.keepAttachments && !uploadFlag.skipDownload,
		ReadOnly:  uploadFlag.dryRun,
	}
	runner := engine.New(transport, processed, store, options, debugLogger())
	report, err := runner.Upload(cmd.Context(), source, uploadFlag.folder)
	if err != nil {
		return err
	}
	term.Infof("%d messages: %d uploaded, %d already on the server, %d skipped, %d attachments saved",
		report.Messages, report.Uploaded, report.Duplicates, report.Skipped, report.Downloaded)
	return reportErrors(report)
}
