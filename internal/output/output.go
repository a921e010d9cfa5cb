// Package output handles CLI output: verbose messages, progress lines,
// operator prompts and the rendering of patient views and errors.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	Reader    io.Reader // Prompt input (default: os.Stdin)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose, progress and prompt support.
type Output struct {
	config          Config
	input           *bufio.Scanner
	progressActive  bool
	progressTotal   int
	progressCurrent int
	progressMu      sync.Mutex
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	if config.Reader == nil {
		config.Reader = os.Stdin
	}
	return &Output{
		config: config,
		input:  bufio.NewScanner(config.Reader),
	}
}

// DefaultConfig returns a Config wired to the standard streams, with TTY
// detection on stdout.
func DefaultConfig() Config {
	return Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Reader:    os.Stdin,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Writer returns the standard output destination.
func (o *Output) Writer() io.Writer {
	return o.config.Writer
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.print(o.config.Writer, format, args...)
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.print(o.config.Writer, format, args...)
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.print(o.config.ErrWriter, format, args...)
}

func (o *Output) print(w io.Writer, format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// ErrNoInput is returned by prompts when the input stream is exhausted.
var ErrNoInput = errors.New("no more input")

// ReadLine prints prompt (without newline) and returns the next input line
// with surrounding space trimmed.
func (o *Output) ReadLine(prompt string) (string, error) {
	o.clearProgressLine()
	if prompt != "" {
		fmt.Fprint(o.config.Writer, prompt)
	}
	if !o.input.Scan() {
		if err := o.input.Err(); err != nil {
			return "", err
		}
		return "", ErrNoInput
	}
	return strings.TrimSpace(o.input.Text()), nil
}

// Confirm asks a yes/no question. Only "s", "sim", "y" and "yes" confirm.
func (o *Output) Confirm(question string) bool {
	answer, err := o.ReadLine(question + " [s/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "s", "sim", "y", "yes":
		return true
	default:
		return false
	}
}

// clearProgressLine clears the current progress line if active.
func (o *Output) clearProgressLine() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.progressActive && o.config.IsTTY {
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
	}
}

// StartProgress begins a progress indicator session.
func (o *Output) StartProgress(total int) {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.progressActive = true
	o.progressTotal = total
	o.progressCurrent = 0
}

// UpdateProgress rewrites the progress line in place.
func (o *Output) UpdateProgress(current int, message string) {
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressCurrent = current
	if message == "" {
		message = "Processing"
	}
	fmt.Fprintf(o.config.Writer, "\r%s %d/%d...", message, current, o.progressTotal)
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressActive = false
	fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
}

// IsVerbose reports whether verbose messages are printed.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY reports whether output goes to a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
