package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/target/esg-checklist-ui/config"
	"github.com/target/esg-checklist-ui/internal/bootstrap"
	"github.com/target/esg-checklist-ui/internal/ports"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	// storage replaces the configured storage (tests).
	storage ports.Storage
}

func main() {
	logger := bootstrap.InitLogger(slog.LevelWarn)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	if cfg.LogLevel != "" {
		logger = bootstrap.InitLogger(cfg.SlogLevel())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and store the access token for the console",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and clear the stored access token",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Validate the stored token and print the signed-in user",
			run:         runWhoami,
		},
		"poll": {
			name:        "poll",
			description: "Poll a backend resource until a JMESPath condition holds",
			run:         runPoll,
		},
		"watch": {
			name:        "watch",
			description: "Print messages from a realtime topic",
			run:         runWatch,
		},
		"prefs": {
			name:        "prefs",
			description: "Print stored display preferences",
			run:         runPrefs,
		},
		"purge": {
			name:        "purge",
			description: "Remove every stored credential key",
			run:         runPurge,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: esg-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-10s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// openServices wires the same services the console runs on. The returned
// func releases storage.
func (c *commandContext) openServices() (*bootstrap.ServiceContainer, func(), error) {
	storage := c.storage
	release := func() {}
	if storage == nil {
		handle, err := bootstrap.OpenStorage(bootstrap.StorageDeps{
			Storage: c.Config.Storage,
			Redis:   c.Config.Redis,
			Logger:  c.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		storage = handle.Storage
		release = func() {
			if err := handle.Close(); err != nil {
				c.Logger.Warn("storage close failed", "error", err)
			}
		}
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:  &c.Config,
		Storage: storage,
		Logger:  c.Logger,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return services, func() {
		services.Session.Wait()
		release()
	}, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
