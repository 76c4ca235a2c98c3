package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/yaajosh/chat-simulator/core"
)

// isTTY reports whether both stdin and stdout are terminals.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// palette maps color index 1..core.ColorSlots to a terminal color.
var palette = []*color.Color{
	color.New(color.FgRed, color.Bold),
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgBlue, color.Bold),
	color.New(color.FgMagenta, color.Bold),
	color.New(color.FgCyan, color.Bold),
	color.New(color.FgHiRed, color.Bold),
	color.New(color.FgHiGreen, color.Bold),
	color.New(color.FgHiYellow, color.Bold),
	color.New(color.FgHiBlue, color.Bold),
}

var (
	gray = color.New(color.FgHiBlack).SprintFunc()
	red  = color.New(color.FgRed).SprintFunc()
)

func colorFor(index int) *color.Color {
	if index < 1 || index > len(palette) {
		return palette[0]
	}
	return palette[index-1]
}

// console prints chat lines. Writes are serialized since the engine emits
// from its drain goroutine while the input loop prints status lines.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) message(m core.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := colorFor(m.ColorIndex).Sprint(m.Speaker)
	fmt.Fprintf(c.out, "%s %s: %s\n", gray(m.Timestamp.Local().Format("15:04:05")), name, m.Text)
}

func (c *console) status(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, gray(s))
}

func (c *console) error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, red("error: "+err.Error()))
}
