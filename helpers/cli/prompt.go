// Package cli runs line oriented command loop for demo utilities.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

type Executor func(line string)
type Completer func(d prompt.Document) []prompt.Suggest

// MainLoop reads commands from interactive prompt when stdin is a terminal,
// otherwise executes stdin line by line until EOF.
func MainLoop(tag string, exec Executor, complete Completer) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-signalCh
		os.Exit(1)
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(prompt.Executor(exec), prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return
	}
	if err := ReadLines(os.Stdin, exec); err != nil {
		os.Stderr.WriteString(tag + ": read stdin: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// ReadLines calls exec for each trimmed non-empty line of r.
func ReadLines(r io.Reader, exec Executor) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(line)
	}
	return scanner.Err()
}

// Suggester returns completer filtering fixed suggestions by word before cursor.
func Suggester(suggests []prompt.Suggest) Completer {
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}
