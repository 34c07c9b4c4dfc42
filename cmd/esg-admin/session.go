package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
)

const passwordEnv = "ESG_PASSWORD"

type loginOptions struct {
	Email    string
	Password string
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password (defaults to $"+passwordEnv+", then stdin)")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return loginOptions{}, errors.New("--email is required")
	}
	if opts.Password == "" {
		opts.Password = os.Getenv(passwordEnv)
	}
	return opts, nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	if opts.Password == "" {
		if opts.Password, err = readPassword(cmdCtx); err != nil {
			return err
		}
	}

	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()

	session := services.Session
	session.Start(cmdCtx.Ctx)
	if err = session.Login(cmdCtx.Ctx, opts.Email, opts.Password); err != nil {
		if msg := session.State(cmdCtx.Ctx).Error; msg != "" {
			return fmt.Errorf("login failed: %s", msg)
		}
		return fmt.Errorf("login failed: %w", err)
	}
	return printSession(cmdCtx, session.State(cmdCtx.Ctx))
}

func readPassword(cmdCtx *commandContext) (string, error) {
	if err := writef(cmdCtx.Out, "Password: "); err != nil {
		return "", fmt.Errorf("print password prompt: %w", err)
	}
	line, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("logout takes no arguments, got %q", args)
	}
	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()

	services.Session.Start(cmdCtx.Ctx)
	services.Session.Logout(cmdCtx.Ctx)
	return writeln(cmdCtx.Out, "Signed out.")
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("whoami takes no arguments, got %q", args)
	}
	services, release, err := cmdCtx.openServices()
	if err != nil {
		return err
	}
	defer release()

	services.Session.Start(cmdCtx.Ctx)
	return printSession(cmdCtx, services.Session.State(cmdCtx.Ctx))
}

func printSession(cmdCtx *commandContext, s domainauth.Session) error {
	if !s.IsAuthenticated || s.User == nil {
		msg := "Not signed in."
		if s.Error != "" {
			msg += " " + s.Error
		}
		return writeln(cmdCtx.Out, msg)
	}
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Name", s.User.DisplayName()},
		{"Email", s.User.Email},
		{"Role", string(s.User.Role)},
		{"ID", s.User.ID},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
