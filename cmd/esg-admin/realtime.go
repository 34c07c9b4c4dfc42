package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/target/esg-checklist-ui/internal/adapters/wschannel"
	"github.com/target/esg-checklist-ui/internal/service"
)

type pollOptions struct {
	Path        string
	Until       string
	Interval    time.Duration
	MaxAttempts int
}

func parsePollFlags(args []string, defaults pollOptions) (pollOptions, error) {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := defaults
	fs.StringVar(&opts.Path, "path", "", "Backend path to poll, e.g. /api/uploads/42 (required)")
	fs.StringVar(&opts.Until, "until", "", "JMESPath expression that ends polling when truthy")
	fs.DurationVar(&opts.Interval, "interval", defaults.Interval, "Delay between requests")
	fs.IntVar(&opts.MaxAttempts, "max-attempts", defaults.MaxAttempts, "Maximum number of requests")

	if err := fs.Parse(args); err != nil {
		return pollOptions{}, err
	}
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Path == "" || !strings.HasPrefix(opts.Path, "/") {
		return pollOptions{}, errors.New("--path must be an absolute backend path")
	}
	if opts.MaxAttempts <= 0 {
		return pollOptions{}, errors.New("--max-attempts must be positive")
	}
	return opts, nil
}

func runPoll(cmdCtx *commandContext, args []string) error {
	opts, err := parsePollFlags(args, pollOptions{
		Interval:    cmdCtx.Config.Realtime.PollInterval,
		MaxAttempts: cmdCtx.Config.Realtime.PollMaxAttempts,
	})
	if err != nil {
		return err
	}
	var stopWhen service.StopCondition
	if opts.Until != "" {
		if stopWhen, err = service.JMESPathCondition(opts.Until); err != nil {
			return err
		}
	}

	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()
	services.Session.Start(cmdCtx.Ctx)

	var writeErr error
	poller, err := service.NewPoller(service.PollerOptions{
		Client:      services.Backend,
		Token:       services.Session.BearerToken,
		Path:        opts.Path,
		Interval:    opts.Interval,
		MaxAttempts: opts.MaxAttempts,
		StopWhen:    stopWhen,
		OnResult: func(data any) {
			if writeErr == nil {
				writeErr = printJSONLine(cmdCtx, data)
			}
		},
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	poller.Start(cmdCtx.Ctx)
	poller.Wait()
	if writeErr != nil {
		return writeErr
	}
	if err = poller.Err(); err != nil {
		return fmt.Errorf("poll %s after %d attempts: %s", opts.Path, poller.Attempts(), poller.ErrorMessage())
	}
	return nil
}

type watchOptions struct {
	Topic    string
	Duration time.Duration
	Send     string
}

func parseWatchFlags(args []string) (watchOptions, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts watchOptions
	fs.StringVar(&opts.Topic, "topic", "", "Realtime topic, e.g. uploads (required)")
	fs.DurationVar(&opts.Duration, "duration", 0, "Stop after this long (0 waits for Ctrl-C)")
	fs.StringVar(&opts.Send, "send", "", "JSON message to send once connected")

	if err := fs.Parse(args); err != nil {
		return watchOptions{}, err
	}
	opts.Topic = strings.TrimSpace(opts.Topic)
	if opts.Topic == "" {
		return watchOptions{}, errors.New("--topic is required")
	}
	if opts.Send != "" && !json.Valid([]byte(opts.Send)) {
		return watchOptions{}, errors.New("--send must be valid JSON")
	}
	return opts, nil
}

func runWatch(cmdCtx *commandContext, args []string) error {
	opts, err := parseWatchFlags(args)
	if err != nil {
		return err
	}
	endpoint, err := wschannel.Endpoint(cmdCtx.Config.Backend.WSURL, opts.Topic)
	if err != nil {
		return err
	}

	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()
	services.Session.Start(cmdCtx.Ctx)

	ctx := cmdCtx.Ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	var (
		mu       sync.Mutex
		writeErr error
		sendOnce sync.Once
	)
	connected := make(chan struct{})
	ch, err := wschannel.New(wschannel.Options{
		Endpoint:             endpoint,
		Token:                services.Session.BearerToken,
		MaxReconnectAttempts: cmdCtx.Config.Realtime.ReconnectAttempts,
		ReconnectDelay:       cmdCtx.Config.Realtime.ReconnectDelay,
		OnMessage: func(msg any) {
			mu.Lock()
			defer mu.Unlock()
			if writeErr == nil {
				writeErr = printJSONLine(cmdCtx, msg)
			}
		},
		OnState: func(s wschannel.State) {
			cmdCtx.Logger.Info("realtime channel state", "topic", opts.Topic, "state", s.String())
			if s == wschannel.Connected {
				sendOnce.Do(func() { close(connected) })
			}
		},
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	ch.Connect(ctx)
	defer func() {
		ch.Disconnect()
		ch.Wait()
	}()

	if opts.Send != "" {
		select {
		case <-connected:
			if err = ch.Send(ctx, json.RawMessage(opts.Send)); err != nil {
				return err
			}
		case <-ctx.Done():
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err = ch.Err(); err != nil {
				return fmt.Errorf("watch %s: %w", opts.Topic, err)
			}
		}
	}
}

func printJSONLine(cmdCtx *commandContext, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return writeln(cmdCtx.Out, string(data))
}
