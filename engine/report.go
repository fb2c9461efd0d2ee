package engine

// Report sums up what a run did. Errors on individual messages don't
// stop the run, they are collected here instead.
type Report struct {
	Folders    int
	Messages   int
	Skipped    int
	Downloaded int
	Rewritten  int
	Uploaded   int
	Duplicates int
	Errors     []error
}

func (r *Report) addError(err error) {
	r.Errors = append(r.Errors, err)
}
