package plugins

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/plugspan/internal/lifespan"
	"github.com/Iron-Ham/plugspan/internal/registry"
)

var (
	helpHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	helpKeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	separatorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Debug returns a plugin that puts stdin into raw mode and reacts to
// single keypresses while the other plugins run:
//
//	?    print this key reference
//	+/-  raise or lower the runtime log level
//	t    dump scheduled task states and notification topics
//	⏎    print a separator line
//
// When stdin is not a terminal the plugin degrades to setup-only and
// contributes no task.
func Debug(pctx *Context) lifespan.Plugin {
	return lifespan.Func("debug", func(ctx context.Context) (lifespan.TaskFunc, lifespan.TeardownFunc, error) {
		logger := pctx.Logger.WithPlugin("debug")

		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			logger.Warn("stdin is not a terminal, keypress commands disabled")
			return nil, nil, nil
		}

		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to enter raw mode: %w", err)
		}
		logger.Debug("terminal in raw mode")

		// The blocking Read cannot be interrupted by ctx, so a reader
		// goroutine feeds keys into a channel the task can select on.
		// Closing stop in teardown releases the goroutine even once the
		// task is gone and nothing receives anymore.
		stop := make(chan struct{})
		keys := readKeys(os.Stdin, stop)

		task := func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case key, ok := <-keys:
					if !ok {
						return ctx.Err()
					}
					handleKey(pctx, key)
				}
			}
		}

		teardown := func(ctx context.Context) error {
			close(stop)
			if err := term.Restore(fd, oldState); err != nil {
				return fmt.Errorf("failed to restore terminal: %w", err)
			}
			logger.Debug("terminal restored")
			return nil
		}

		return task, teardown, nil
	})
}

// readKeys feeds single bytes from r into the returned channel until r
// errors out or stop closes. Closing stop releases the goroutine after
// at most one more read, even when nothing receives from the channel.
func readKeys(r io.Reader, stop <-chan struct{}) <-chan byte {
	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if err != nil {
				return
			}
			if n != 1 {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			select {
			case keys <- buf[0]:
			case <-stop:
				return
			}
		}
	}()
	return keys
}

func handleKey(pctx *Context, key byte) {
	switch key {
	case '?':
		printHelp()
	case '+', '=':
		level := pctx.Logger.AdjustLevel(1)
		rawPrintf("log level: %s", level)
	case '-':
		level := pctx.Logger.AdjustLevel(-1)
		rawPrintf("log level: %s", level)
	case 't':
		printTasks(pctx)
	case '\r', '\n':
		rawPrintf("%s", separatorStyle.Render(strings.Repeat("-", 40)))
	}
}

func printHelp() {
	rawPrintf("%s", helpHeaderStyle.Render("debug keys"))
	for _, entry := range [][2]string{
		{"?", "show this help"},
		{"+/-", "raise/lower log level"},
		{"t", "dump task states and topics"},
		{"enter", "print a separator"},
	} {
		rawPrintf("  %s  %s", helpKeyStyle.Render(fmt.Sprintf("%-5s", entry[0])), entry[1])
	}
}

func printTasks(pctx *Context) {
	var statuses []registry.Status
	if pctx.Orch != nil {
		statuses = pctx.Orch.Tasks()
	}
	if len(statuses) == 0 {
		rawPrintf("no scheduled tasks")
	}
	for _, st := range statuses {
		state := "running"
		if st.Done {
			state = st.Outcome.String()
		}
		rawPrintf("task %-12s %s", st.Name, state)
	}
	for _, name := range pctx.Hub.Topics() {
		value, version := pctx.Hub.Load(name)
		rawPrintf("topic %-11s v%d %v", name, version, value)
	}
}

// rawPrintf writes a line to stderr with an explicit carriage return,
// which raw mode requires for column alignment.
func rawPrintf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\r\n", args...)
}
