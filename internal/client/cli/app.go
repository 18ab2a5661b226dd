package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage")

type App struct {
	config *config.Config
	api    *client.HTTPClient
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func NewApp(c *config.Config, in io.Reader, out, errOut io.Writer) (*App, error) {
	api, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out, errOut: errOut}, nil
}

type command struct {
	name  string
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{"keygen", "print a new signing secret", (*App).keygen},
	{"useradd", "-driver D -d DSN -e EMAIL [-roles R1,R2]", (*App).userAdd},
	{"setroles", "-driver D -d DSN -e EMAIL -roles R1,R2", (*App).setRoles},
	{"login", "-e EMAIL", (*App).login},
	{"refresh", "-r REFRESH_TOKEN", (*App).refresh},
	{"logout", "-r REFRESH_TOKEN", (*App).logout},
	{"whoami", "-t ACCESS_TOKEN", (*App).whoami},
	{"sessions", "-t ACCESS_TOKEN", (*App).sessions},
	{"logout-all", "-t ACCESS_TOKEN", (*App).logoutAll},
}

// Run executes the command named by args[0]. Global flags anywhere in args
// are ignored here.
func (a *App) Run(ctx context.Context, args []string) error {
	name := firstCommand(args)
	if name == "" || name == "help" {
		a.usage()
		if name == "" {
			return ErrUsage
		}
		return nil
	}
	for _, c := range commands {
		if c.name == name {
			return c.run(a, ctx, args)
		}
	}
	a.usage()
	return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
}

// globalValueFlags take a value and may precede the command name.
var globalValueFlags = map[string]bool{
	"-a": true, "--a": true,
	"-timeout": true, "--timeout": true,
	"-c": true, "--c": true,
	"-config": true, "--config": true,
}

func firstCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
		if globalValueFlags[arg] {
			i++
		}
	}
	return ""
}

func (a *App) usage() {
	fmt.Fprintln(a.errOut, "usage: tokenctl [-a URL] [-timeout D] [-c FILE] <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(a.errOut, "  %-11s %s\n", c.name, c.usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := flagx.ParseKnown(fs, args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: -%s is required", ErrUsage, name)
	}
	return nil
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Main is the tokenctl entry point; it returns the process exit code.
func Main(ctx context.Context, args []string) int {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	app, err := NewApp(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
