package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer provides formatted CLI output with semantic styling. All output
// methods ignore write errors internally for simplicity.
type Printer interface {
	Print(a ...interface{})
	Println(a ...interface{})
	Printf(format string, a ...interface{})

	Success(msg string)
	Error(msg string)
	Warning(msg string)
	Info(msg string)

	Successf(format string, a ...interface{})
	Errorf(format string, a ...interface{})

	Bold(text string) string
	Faint(text string) string
}

// writer implements the Printer interface
type writer struct {
	out          io.Writer
	successColor func(a ...interface{}) string
	errorColor   func(a ...interface{}) string
	warningColor func(a ...interface{}) string
	infoColor    func(a ...interface{}) string
	boldStyle    func(a ...interface{}) string
	faintStyle   func(a ...interface{}) string
}

// New creates a Printer that writes to the given io.Writer.
func New(w io.Writer) Printer {
	return &writer{
		out:          w,
		successColor: color.New(color.FgGreen).SprintFunc(),
		errorColor:   color.New(color.FgRed).SprintFunc(),
		warningColor: color.New(color.FgYellow).SprintFunc(),
		infoColor:    color.New(color.FgCyan).SprintFunc(),
		boldStyle:    color.New(color.Bold).SprintFunc(),
		faintStyle:   color.New(color.Faint).SprintFunc(),
	}
}

// Default returns a Printer writing to stdout.
func Default() Printer {
	return New(os.Stdout)
}

func (w *writer) Print(a ...interface{}) {
	fmt.Fprint(w.out, a...)
}

func (w *writer) Println(a ...interface{}) {
	fmt.Fprintln(w.out, a...)
}

func (w *writer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(w.out, format, a...)
}

func (w *writer) Success(msg string) {
	fmt.Fprintln(w.out, w.successColor("✓"), msg)
}

func (w *writer) Error(msg string) {
	fmt.Fprintln(w.out, w.errorColor("✗"), msg)
}

func (w *writer) Warning(msg string) {
	fmt.Fprintln(w.out, w.warningColor("!"), msg)
}

func (w *writer) Info(msg string) {
	fmt.Fprintln(w.out, w.infoColor("•"), msg)
}

func (w *writer) Successf(format string, a ...interface{}) {
	w.Success(fmt.Sprintf(format, a...))
}

func (w *writer) Errorf(format string, a ...interface{}) {
	w.Error(fmt.Sprintf(format, a...))
}

func (w *writer) Bold(text string) string {
	return w.boldStyle(text)
}

func (w *writer) Faint(text string) string {
	return w.faintStyle(text)
}
