package cmd

import "github.com/pterm/pterm"

// folderProgress displays one progress bar per folder.
type folderProgress struct {
	pbar   *pterm.ProgressbarPrinter
	folder string
}

func newFolderProgress() *folderProgress {
	return &folderProgress{}
}

func (p *folderProgress) update(folder string, current, total int) {
	if global.verbose {
		// a progress bar doesn't mix well with debugging output
		return
	}
	if folder != p.folder {
		p.stop()
		p.folder = folder
		p.pbar, _ = pterm.DefaultProgressbar.WithTotal(total).WithTitle(folder).Start()
	}
	if p.pbar != nil {
		p.pbar.Increment()
	}
}

func (p *folderProgress) stop() {
	if p.pbar != nil {
		_, _ = p.pbar.Stop()
		p.pbar = nil
	}
}
