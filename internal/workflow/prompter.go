package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prompter is the interactive capability injected into the workflow
// layer. Implementations must be fail-safe: when input is unavailable,
// times out, or is cancelled, the answer is "no" / "nothing chosen",
// never "proceed".
type Prompter interface {
	// Confirm asks a yes/no question. False on timeout, cancellation,
	// or unreadable input.
	Confirm(ctx context.Context, question string) bool

	// Select asks the user to pick one of options by number. The
	// second return is false when no valid selection was made.
	Select(ctx context.Context, question string, options []string) (int, bool)
}

// TerminalPrompter reads answers line-by-line from a terminal.
type TerminalPrompter struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
}

// NewTerminalPrompter creates a prompter with the given I/O and a
// per-question timeout. A zero timeout waits indefinitely (until the
// context is cancelled).
func NewTerminalPrompter(in io.Reader, out io.Writer, timeout time.Duration) *TerminalPrompter {
	return &TerminalPrompter{In: in, Out: out, Timeout: timeout}
}

func (p *TerminalPrompter) Confirm(ctx context.Context, question string) bool {
	fmt.Fprintf(p.Out, "%s [y/N]: ", question)
	line, ok := p.readLine(ctx)
	if !ok {
		fmt.Fprintln(p.Out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (p *TerminalPrompter) Select(ctx context.Context, question string, options []string) (int, bool) {
	fmt.Fprintln(p.Out, question)
	for i, opt := range options {
		fmt.Fprintf(p.Out, "  %d) %s\n", i+1, opt)
	}
	fmt.Fprintf(p.Out, "Selection [1-%d, empty to cancel]: ", len(options))

	line, ok := p.readLine(ctx)
	if !ok {
		fmt.Fprintln(p.Out)
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(options) {
		return 0, false
	}
	return n - 1, true
}

// readLine reads one line, racing the context and the timeout. The
// reading goroutine may outlive a timed-out call; that is acceptable
// for a short-lived CLI process.
func (p *TerminalPrompter) readLine(ctx context.Context) (string, bool) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(p.In)
		if scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

// ScriptedPrompter replays canned answers, for tests and automation.
// Exhausted answer lists resolve to the fail-safe default.
type ScriptedPrompter struct {
	Confirms   []bool
	Selections []int

	confirmIdx int
	selectIdx  int
}

func (p *ScriptedPrompter) Confirm(_ context.Context, _ string) bool {
	if p.confirmIdx >= len(p.Confirms) {
		return false
	}
	answer := p.Confirms[p.confirmIdx]
	p.confirmIdx++
	return answer
}

func (p *ScriptedPrompter) Select(_ context.Context, _ string, options []string) (int, bool) {
	if p.selectIdx >= len(p.Selections) {
		return 0, false
	}
	n := p.Selections[p.selectIdx]
	p.selectIdx++
	if n < 0 || n >= len(options) {
		return 0, false
	}
	return n, true
}
