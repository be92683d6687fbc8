package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

// Braille spinner animation frames
var spinnerFrames = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

// minAnimatedWait is the shortest wait that gets an animation.
const minAnimatedWait = 500 * time.Millisecond

// Spinner shows model rate-limit and retry pauses on stderr.
type Spinner struct {
	output *OutputHandler
}

// NewSpinner creates a new spinner attached to an output handler
func NewSpinner(output *OutputHandler) *Spinner {
	return &Spinner{output: output}
}

// Wait blocks for info.Duration or until ctx is done, showing a countdown.
// It has the shape of llm.WaitCallback.
func (s *Spinner) Wait(ctx context.Context, info llm.WaitInfo) error {
	message := "Rate limited"
	if info.MaxAttempts > 0 {
		message = "Model unavailable"
	}

	if info.Duration < minAnimatedWait {
		return sleep(ctx, info.Duration)
	}
	if !s.output.IsTTY() {
		return s.staticWait(ctx, message, info)
	}
	return s.animatedWait(ctx, message, info)
}

// staticWait displays a single line and waits (for non-TTY/piped output)
func (s *Spinner) staticWait(ctx context.Context, message string, info llm.WaitInfo) error {
	msg := fmt.Sprintf("ℹ %s: waiting %s", message, formatDuration(info.Duration))
	if info.MaxAttempts > 0 {
		msg += fmt.Sprintf(" (retry %d/%d", info.Attempt, info.MaxAttempts)
		if info.Reason != "" {
			msg += ", " + info.Reason
		}
		msg += ")"
	} else if info.Reason != "" {
		msg += fmt.Sprintf(" (%s)", info.Reason)
	}
	fmt.Fprintln(s.output.err, msg)
	return sleep(ctx, info.Duration)
}

// animatedWait displays an animated spinner with countdown (for TTY mode)
func (s *Spinner) animatedWait(ctx context.Context, message string, info llm.WaitInfo) error {
	start := time.Now()
	frameIndex := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	defer fmt.Fprint(s.output.err, ClearLine+CursorStart)

	for {
		remaining := max(info.Duration-time.Since(start), 0)
		frame := string(spinnerFrames[frameIndex])
		line := s.buildStatusLine(frame, message, info.Reason, remaining, info.Attempt, info.MaxAttempts)
		fmt.Fprint(s.output.err, ClearLine+CursorStart+line)

		if remaining == 0 {
			return nil
		}
		select {
		case <-ticker.C:
			frameIndex = (frameIndex + 1) % len(spinnerFrames)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// buildStatusLine constructs the animated status line
func (s *Spinner) buildStatusLine(frame, message, reason string, remaining time.Duration, attempt, maxAttempts int) string {
	o := s.output
	sep := " | "
	if o.UseColors() {
		sep = " " + Dim + "|" + Reset + " "
	}

	line := o.color(Cyan, frame) + " " + o.color(Yellow, message)
	if maxAttempts > 0 {
		line += sep + fmt.Sprintf("Retry %d/%d", attempt, maxAttempts)
	}
	if reason != "" {
		line += sep + reason
	}
	return line + sep + o.color(Bold, formatDuration(remaining)+" remaining")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// formatDuration formats a duration for display (45s, 1m30s, 5m00s)
func formatDuration(d time.Duration) string {
	d = max(d.Round(time.Second), 0)

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes == 0 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}
