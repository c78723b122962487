package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/rshade/alignblocks/internal/engine/batch"
)

// streamReporter writes the block progress and crash lines to the diagnostic stream.
type streamReporter struct {
	w        io.Writer
	log      zerolog.Logger
	progress func(...string) string
	crash    func(...string) string
}

func plain(strs ...string) string {
	return strings.Join(strs, " ")
}

// newStreamReporter returns a reporter writing to w. Styling is applied only when
// styled is true, so redirected stderr stays plain text.
func newStreamReporter(w io.Writer, styled bool, log zerolog.Logger) *streamReporter {
	r := &streamReporter{
		w:        w,
		log:      log,
		progress: plain,
		crash:    plain,
	}
	if styled {
		renderer := lipgloss.NewRenderer(w)
		r.progress = renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render
		r.crash = renderer.NewStyle().Foreground(lipgloss.Color("196")).Render
	}
	return r
}

func (r *streamReporter) BlockStarted(index, total int) {
	_, _ = fmt.Fprintln(r.w, r.progress(fmt.Sprintf("Block %d/%d", index+1, total)))
}

func (r *streamReporter) AttemptFailed(index, attempt int, err error) {
	_, _ = fmt.Fprintln(r.w, r.crash(fmt.Sprintf("Crashed %v", err)))
	r.log.Debug().
		Int("block", index+1).
		Int("attempt", attempt).
		Msg("retrying block")
}

func (r *streamReporter) BlockSucceeded(p batch.ProgressSnapshot) {
	r.log.Info().
		Int("block", p.ProcessedBatches).
		Int("blocks", p.TotalBatches).
		Int("items_done", p.ProcessedItems).
		Int("items", p.TotalItems).
		Str("percent", fmt.Sprintf("%.1f", p.PercentComplete)).
		Dur("elapsed", p.ElapsedTime).
		Dur("remaining", p.Remaining).
		Msg("block complete")
}
