package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

const (
	redrawInterval = 100 * time.Millisecond
	logInterval    = 5 * time.Second
	maxBarWidth    = 40
)

// watchProgress reports state until finished closes. On a terminal it
// redraws a small status block and stops the run when q, Esc or Ctrl-C
// is pressed; otherwise it logs a line every few seconds.
func watchProgress(state *mfkey.ProgramState, cancel context.CancelFunc, finished <-chan struct{}) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		logProgress(state, finished)
		return
	}

	restore := watchKeys(cancel)
	defer restore()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()
	lines := 0
	for {
		select {
		case <-finished:
			redraw(lines, render(state.Snapshot(), barWidth(fd)))
			return
		case <-ticker.C:
			lines = redraw(lines, render(state.Snapshot(), barWidth(fd)))
		}
	}
}

func logProgress(state *mfkey.ProgramState, finished <-chan struct{}) {
	ticker := time.NewTicker(logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-finished:
			return
		case <-ticker.C:
			p := state.Snapshot()
			slog.Info("progress", "phase", p.Phase.String(), "completed", p.Completed, "total", p.Total,
				"round", p.Round+1, "rounds", p.Rounds, "eta", p.TotalETA.Round(time.Second).String())
		}
	}
}

// watchKeys puts stdin in raw mode and cancels on a stop key. The returned
// function restores the terminal.
func watchKeys(cancel context.CancelFunc) func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		slog.Debug("raw mode unavailable", "err", err)
		return func() {}
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && isStopKey(buf[0]) {
				cancel()
				return
			}
		}
	}()
	return func() { term.Restore(fd, oldState) }
}

func isStopKey(b byte) bool {
	switch b {
	case 'q', 'Q', 0x1B, 0x03: // Esc, Ctrl-C
		return true
	}
	return false
}

func barWidth(fd int) int {
	cols, _, err := term.GetSize(fd)
	if err != nil || cols <= 0 {
		return maxBarWidth
	}
	// Leave room for the brackets and a label.
	w := cols - 36
	if w > maxBarWidth {
		w = maxBarWidth
	}
	if w < 10 {
		w = 10
	}
	return w
}

// redraw replaces the previous block of prev lines with lines. Output is
// in raw mode, so every line ends in \r\n.
func redraw(prev int, lines []string) int {
	var b strings.Builder
	if prev > 0 {
		fmt.Fprintf(&b, "\033[%dA", prev)
	}
	for _, l := range lines {
		b.WriteString("\033[2K\r")
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	// Clear leftovers when the block shrank.
	for i := len(lines); i < prev; i++ {
		b.WriteString("\033[2K\r\n")
	}
	fmt.Print(b.String())
	if prev > len(lines) {
		return prev
	}
	return len(lines)
}

func render(p mfkey.Progress, width int) []string {
	switch p.Phase {
	case mfkey.PhaseDictionaryAttack:
		return []string{
			fmt.Sprintf("Dict solves: %d (in progress)", p.Cracked),
			fmt.Sprintf("Keys in dict: %d", p.DictCount),
		}
	case mfkey.PhaseAttacking:
		lines := []string{
			bar(width, p.Done(), fmt.Sprintf("Cracking: %d/%d - in prog.", p.Completed, p.Total)),
			bar(width, p.RoundDone(), fmt.Sprintf("Round: %d/%d - ETA %02d Sec", p.Round+1, p.Rounds, seconds(p.RoundETA))),
			bar(width, p.TotalDone(), fmt.Sprintf("Total ETA %03d Sec", seconds(p.TotalETA))),
		}
		if p.Tier != mfkey.TierFull {
			lines = append(lines, fmt.Sprintf("Low memory: %s tier", p.Tier))
		}
		return lines
	case mfkey.PhaseComplete:
		lines := []string{
			bar(width, 1, "Complete"),
			fmt.Sprintf("Keys added to user dict: %d", p.UniqueCracked),
		}
		if p.Candidates > 0 {
			lines = append(lines, fmt.Sprintf("SEN key candidates: %d", p.Candidates))
		}
		return lines
	case mfkey.PhaseError:
		return []string{fmt.Sprintf("Error: %v", p.Err)}
	default:
		return []string{strings.ToUpper(p.Phase.String()[:1]) + p.Phase.String()[1:]}
	}
}

func bar(width int, frac float64, label string) string {
	filled := int(frac*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "] " + label
}

func seconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}
