package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var errUsage = errors.New("usage")

const usage = `usage: starling-server <command> [arguments]

commands:
  account                          list accounts
  account add -bank NAME [-token-file PATH]
  account delete -bank NAME | -uuid UUID
  category                         list categories
  category add|delete GROUP:NAME
  category init
  category rename GROUP:NAME NEWNAME
  category assign COUNTERPARTY GROUP:NAME
  category change-group GROUP:NAME NEWGROUP
  name                             list display names
  name add RAW DISPLAY
  name delete RAW
  server                           run the HTTP API
  transactions [-account UUID] [-start DATE] [-end DATE]
`

// CLI runs one command against an App opened on demand.
type CLI struct {
	In   io.Reader
	Out  io.Writer
	Err  io.Writer
	Open func(ctx context.Context) (*App, error)
}

func New(open func(ctx context.Context) (*App, error)) *CLI {
	return &CLI{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Open: open}
}

type command func(ctx context.Context, app *App, args []string) error

func (c *CLI) commands() map[string]command {
	return map[string]command{
		"account":      c.account,
		"category":     c.category,
		"name":         c.name,
		"server":       c.server,
		"transactions": c.transactions,
	}
}

// Run executes args and returns the process exit code.
func (c *CLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(c.Err, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := c.commands()[args[0]]
	if !ok {
		c.fail(fmt.Errorf("unknown command %q", args[0]))
		fmt.Fprint(c.Err, usage)
		return 2
	}

	app, err := c.Open(ctx)
	if err != nil {
		c.fail(err)
		return 1
	}
	defer app.Close()

	if err := cmd(ctx, app, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			if !errors.Is(err, flag.ErrHelp) {
				c.fail(err)
			}
			fmt.Fprint(c.Err, usage)
			return 2
		}
		c.fail(err)
		return 1
	}
	return 0
}

func (c *CLI) fail(err error) {
	color.New(color.FgRed, color.Bold).Fprint(c.Err, "error: ")
	fmt.Fprintln(c.Err, firstLine(err.Error()))
}

func (c *CLI) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(c.Err, "warning: "+format+"\n", args...)
}

func (c *CLI) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(c.Out, format+"\n", args...)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
