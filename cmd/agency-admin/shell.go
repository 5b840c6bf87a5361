package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-agency-admin/apiclient"
	"github.com/jrsteele09/go-agency-admin/app"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

const usage = `commands:
  login <email> <password>
  logout
  whoami
  list <resource> [field=value ...]
  get <resource> <id>
  create <resource> <json>
  update <resource> <id> <json>
  delete <resource> <id>
  report
  hide | show
  state
  quit`

type command func(ctx context.Context, args string) error

type shell struct {
	tab      *app.Tab
	out      io.Writer
	commands map[string]command
}

func newShell(tab *app.Tab, out io.Writer) *shell {
	s := &shell{tab: tab, out: out}
	s.commands = map[string]command{
		"login":  s.login,
		"logout": s.logout,
		"whoami": s.whoami,
		"list":   s.list,
		"get":    s.get,
		"create": s.create,
		"update": s.update,
		"delete": s.delete,
		"report": s.report,
		"hide":   func(ctx context.Context, _ string) error { return s.tab.SetVisible(ctx, false) },
		"show":   func(ctx context.Context, _ string) error { return s.tab.SetVisible(ctx, true) },
		"state":  s.state,
		"help": func(context.Context, string) error {
			fmt.Fprintln(s.out, usage)
			return nil
		},
	}
	return s
}

// Run executes one command per input line until quit or end of input.
func (s *shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		if quit := s.Exec(ctx, scanner.Text()); quit {
			return nil
		}
		fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}

// Exec runs one line and reports whether the shell should exit.
func (s *shell) Exec(ctx context.Context, line string) bool {
	name, args := cut(line)
	if name == "" {
		return false
	}
	if name == "quit" || name == "exit" {
		return true
	}

	// Anything typed is user activity, even a command that then fails.
	if err := s.tab.Activity(ctx); err != nil {
		log.Debug().Err(err).Msg("Activity refresh failed")
	}

	cmd, ok := s.commands[name]
	if !ok {
		fmt.Fprintf(s.out, "unknown command %q, try help\n", name)
		return false
	}
	if err := cmd(ctx, args); err != nil {
		fmt.Fprintf(s.out, "%s failed: %s\n", name, describe(err))
	}
	return false
}

func (s *shell) login(ctx context.Context, args string) error {
	email, password := cut(args)
	if email == "" || password == "" {
		return errors.New("usage: login <email> <password>")
	}
	user, err := s.tab.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "logged in as %s (%s)\n", user.Name, user.Role)
	return nil
}

func (s *shell) logout(ctx context.Context, _ string) error {
	return s.tab.Auth.Logout(ctx)
}

func (s *shell) whoami(ctx context.Context, _ string) error {
	user, err := s.tab.Auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return s.print(user)
}

func (s *shell) list(ctx context.Context, args string) error {
	name, rest := cut(args)
	svc, err := s.tab.Data.Lookup(name)
	if err != nil {
		return err
	}
	filter := url.Values{}
	for _, pair := range strings.Fields(rest) {
		field, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("filter %q is not field=value", pair)
		}
		filter.Add(field, value)
	}
	records, err := svc.ListAny(ctx, filter)
	if err != nil {
		return err
	}
	return s.print(records)
}

func (s *shell) get(ctx context.Context, args string) error {
	name, id := cut(args)
	svc, err := s.tab.Data.Lookup(name)
	if err != nil {
		return err
	}
	record, err := svc.GetAny(ctx, id)
	if err != nil {
		return err
	}
	return s.print(record)
}

func (s *shell) create(ctx context.Context, args string) error {
	name, body := cut(args)
	svc, err := s.tab.Data.Lookup(name)
	if err != nil {
		return err
	}
	record, err := svc.CreateJSON(ctx, []byte(body))
	if err != nil {
		return err
	}
	return s.print(record)
}

func (s *shell) update(ctx context.Context, args string) error {
	name, rest := cut(args)
	id, body := cut(rest)
	svc, err := s.tab.Data.Lookup(name)
	if err != nil {
		return err
	}
	record, err := svc.UpdateJSON(ctx, id, []byte(body))
	if err != nil {
		return err
	}
	return s.print(record)
}

func (s *shell) delete(ctx context.Context, args string) error {
	name, id := cut(args)
	svc, err := s.tab.Data.Lookup(name)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "deleted %s %s\n", name, id)
	return nil
}

func (s *shell) report(ctx context.Context, _ string) error {
	summary, err := s.tab.Data.ReportSummary(ctx)
	if err != nil {
		return err
	}
	return s.print(summary)
}

func (s *shell) state(ctx context.Context, _ string) error {
	rec, err := s.tab.Session.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "state=%s page=%s", s.tab.Monitor.State(), s.tab.Path())
	if rec.IsLoggedIn {
		fmt.Fprintf(s.out, " expiry=%s lastActivity=%s", rec.SessionExpiry.Format("15:04:05"), rec.LastActivity.Format("15:04:05"))
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *shell) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(data))
	return nil
}

// cut splits off the first word of s.
func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	head, rest, _ := strings.Cut(s, " ")
	return head, strings.TrimSpace(rest)
}

// describe turns an operation error into the message shown to the user.
func describe(err error) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apperrors.ErrSessionTerminated):
		return "your session has ended, please log in again"
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, apperrors.ErrNotLoggedIn):
		return "not logged in"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden:
		return "not permitted for your role"
	}
	return err.Error()
}
