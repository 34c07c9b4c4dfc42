package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

func runPrefs(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("prefs takes no arguments, got %q", args)
	}
	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()

	return printJSONLine(cmdCtx, services.Preferences.Get(cmdCtx.Ctx))
}

type purgeOptions struct {
	Yes bool
}

func parsePurgeFlags(args []string) (purgeOptions, error) {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts purgeOptions
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return purgeOptions{}, err
	}
	return opts, nil
}

func runPurge(cmdCtx *commandContext, args []string) error {
	opts, err := parsePurgeFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		if err = confirmAction(cmdCtx, "remove every stored credential key"); err != nil {
			return err
		}
	}

	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()

	if err = services.Tokens.Purge(cmdCtx.Ctx); err != nil {
		return err
	}
	return writeln(cmdCtx.Out, "Stored credentials removed. Running consoles will return to the login screen.")
}

func confirmAction(cmdCtx *commandContext, action string) error {
	if err := writef(cmdCtx.Out, "About to %s.\nContinue? [y/N]: ", action); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && resp == "" {
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
