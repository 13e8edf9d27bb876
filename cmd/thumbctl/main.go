// Command thumbctl drives the ThumbExpert API from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/config"
	"thumbexpert/internal/httpclient"
	"thumbexpert/internal/logging"
	"thumbexpert/internal/session"
)

const usage = `usage: thumbctl <command> [flags]

Account:
  signup     -email E -name N [-username U]
  login      -email E
  logout
  whoami
  upgrade

Generation:
  catalog
  generate   -title T [-style S] [-lang L] [-tone T] [-text-style S] [-text X] [-out DIR] IMAGE...
  edit       -image FILE|URL [-out FILE] INSTRUCTION...
  titles     TOPIC...
  ctr        -image FILE -title T
  bulk       -in FILE.csv [-out FILE.csv]

Library:
  history
  favorites
  brandkit   -name N -primary #RRGGBB -secondary #RRGGBB [-slogan S] [-font F]

Passwords are read from the terminal, or from stdin when it is not a terminal.`

var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "thumbctl:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	tokenFile := cfg.CLI.TokenFile
	if tokenFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "thumbctl:", err)
			os.Exit(1)
		}
		tokenFile = filepath.Join(dir, "thumbexpert", "token")
	}

	backend, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.CLI.APIBaseURL,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
			UserAgent:  "thumbctl",
		}),
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "thumbctl:", err)
		os.Exit(1)
	}

	a := newApp(backend, session.FileTokens{Path: tokenFile}, logger, os.Stdin, os.Stdout)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "thumbctl:", err)
		os.Exit(1)
	}
}

type app struct {
	backend *apiclient.Client
	ctrl    *session.Controller
	in      io.Reader
	out     io.Writer
}

func newApp(backend *apiclient.Client, tokens session.TokenStore, logger *slog.Logger, in io.Reader, out io.Writer) *app {
	return &app{
		backend: backend,
		ctrl: session.New(session.Options{
			Backend: backend,
			Tokens:  tokens,
			Logger:  logger,
		}),
		in:  in,
		out: out,
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	case "catalog":
		return a.catalog(ctx)
	}

	if err := a.ctrl.Restore(ctx); err != nil {
		return err
	}

	switch cmd {
	case "signup":
		return a.signup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "upgrade":
		return a.upgrade(ctx)
	case "generate":
		return a.generate(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "titles":
		return a.titles(ctx, rest)
	case "ctr":
		return a.ctr(ctx, rest)
	case "bulk":
		return a.bulk(ctx, rest)
	case "history":
		return a.history()
	case "favorites":
		return a.favorites()
	case "brandkit":
		return a.brandKit(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
