package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	echoapi "github.com/bangkihwa/studylink/apps/api/echo"
	"github.com/bangkihwa/studylink/core/user"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errNotConfirmed = errors.New("not confirmed")
	errMissingRole  = errors.New("user does not have the requested role")
)

func (cli *commandLine) publishDue() error {
	report, err := cli.scheduler.RunOnce(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "run %s: %d due, %d published, %d failed\n", report.RunID, report.Due, report.Published, report.Failed)
	if report.Failed > 0 {
		return fmt.Errorf("%d tests failed to publish", report.Failed)
	}
	return nil
}

func (cli *commandLine) deleteTest(id int64, yes bool) error {
	ctx := context.Background()
	detail, err := cli.svc.GetTest(ctx, user.System, id)
	if err != nil {
		return err
	}

	if !yes {
		prompt := fmt.Sprintf("Delete test %d %q with its %d questions and every submission? [y/N] ",
			detail.ID, detail.Title, len(detail.Questions))
		if !cli.confirm(prompt) {
			return errNotConfirmed
		}
	}
	if err := cli.svc.DeleteTest(ctx, user.System, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "test %d deleted\n", id)
	return nil
}

// confirm asks on interactive terminals only; anything else needs -yes.
func (cli *commandLine) confirm(prompt string) bool {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		fmt.Fprintln(cli.out, "not a terminal: pass -yes to confirm")
		return false
	}
	fmt.Fprint(cli.out, prompt)
	answer, _ := bufio.NewReader(cli.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (cli *commandLine) token(userID int64, role string) error {
	usr, err := cli.users.GetUserByID(context.Background(), userID)
	if err != nil {
		return err
	}
	if role != "" && !usr.RoleStartsWith(role) {
		return errMissingRole
	}

	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
