// Command utilctl bundles operational helpers for the utility report service.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-utility/internal/platform/cache"
)

// redisConfig is the subset of the service configuration the CLI needs.
type redisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

const usage = `usage: utilctl <command> [flags]

commands:
  hash-password            read a password from stdin and print its bcrypt hash
  jobs trigger <job>       enqueue warmup or cache-bump
  jobs inspect             print default queue statistics
  jobs scheduled           list scheduled tasks
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, openJobsCLI))
}

// jobsOpener builds the queue helpers lazily so hash-password works without Redis.
type jobsOpener func() (*JobsCLI, error)

func openJobsCLI() (*JobsCLI, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg redisConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return NewJobsCLI(cache.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}.AsynqOpt()), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, open jobsOpener) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "hash-password":
		return hashPasswordCommand(bufio.NewReader(stdin), stdout, stderr)
	case "jobs":
		if len(args) < 2 {
			_, _ = fmt.Fprint(stderr, usage)
			return 2
		}
		cli, err := open()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
			return 1
		}
		defer func() { _ = cli.Close() }()
		return cli.Command(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(stdout, usage)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", strings.TrimSpace(args[0]), usage)
		return 2
	}
}
