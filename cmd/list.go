package cmd

import (
	"errors"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <account>",
	Short: "Display the folders of an account",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("missing account name")
	}
	account, err := getAccount(args[0])
	if err != nil {
		return err
	}
	transport, err := openAccount(account, 0)
	if err != nil {
		return err
	}
	defer transport.Close()

	folders, err := transport.ListFolders()
	if err != nil {
		return err
	}
	table := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Folder", "Messages", "Unseen"},
	})
	for _, folder := range folders {
		var messages, unseen string
		status, err := transport.SelectFolder(folder.Name, true)
		if err == nil {
			messages = strconv.FormatUint(uint64(status.Messages), 10)
			unseen = strconv.FormatUint(uint64(status.Unseen), 10)
		}
		table.Data = append(table.Data, []string{folder.Name, messages, unseen})
	}
	return table.Render()
}
