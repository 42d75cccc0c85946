package pipeline

import "time"

// Report summarizes a finished build.
type Report struct {
	Sources   int
	Documents int
	Drafts    int
	Modules   []string
	BuildID   string
	Duration  time.Duration
}
