package cli

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress draws a per-game bar. The game count is only known once the
// platform has answered, so the bar is created on the first update.
type Progress struct {
	w       io.Writer
	desc    string
	enabled bool
	bar     *progressbar.ProgressBar
}

// NewProgress returns a bar on w that stays silent unless w is a terminal
func NewProgress(w io.Writer, desc string) *Progress {
	return &Progress{w: w, desc: desc, enabled: IsTerminal(w)}
}

// Update has the signature of processor.Request.Progress
func (p *Progress) Update(done, total int) {
	if !p.enabled {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(p.desc),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

// Finish clears the bar
func (p *Progress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
