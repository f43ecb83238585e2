package internal

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ProgressReporter reports indexing progress. A nil reporter is silent.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

type indexProgress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a progress bar when stderr is a terminal, nil
// otherwise so logs stay clean when output is piped.
func NewProgress() ProgressReporter {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return &indexProgress{}
}

func (p *indexProgress) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *indexProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *indexProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
