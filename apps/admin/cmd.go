package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
	schedsvc "github.com/bangkihwa/studylink/services/scheduler"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sqlx.DB // nil for the memory engine
	users     user.Repository
	svc       *assessment.Service
	scheduler *schedsvc.Scheduler
	in        io.Reader
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [VERSION]  - up | up-by-one | up-to V | down | down-to V | redo | status | version")
	fmt.Fprintln(cli.out, "  publishdue                 - publish every test whose publish time has come")
	fmt.Fprintln(cli.out, "  deletetest -id ID [-yes]   - delete a test with its questions, submissions and deadline")
	fmt.Fprintln(cli.out, "  token -id ID [-role ROLE]  - print an API token for a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	deleteTestCmd := flag.NewFlagSet("deletetest", flag.ContinueOnError)
	deleteTestCmd.SetOutput(cli.out)
	deleteTestID := deleteTestCmd.Int64("id", 0, "The test's ID.")
	deleteTestYes := deleteTestCmd.Bool("yes", false, "Do not ask for confirmation.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenUserID := tokenCmd.Int64("id", 0, "The user's ID.")
	tokenRole := tokenCmd.String("role", "", "A role (or role prefix, e.g. teacher:) the user must have.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "publishdue":
		return cli.publishDue()
	case "deletetest":
		if err := deleteTestCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteTestID <= 0 {
			deleteTestCmd.Usage()
			return errHelp
		}
		return cli.deleteTest(*deleteTestID, *deleteTestYes)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUserID <= 0 {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUserID, *tokenRole)
	default:
		cli.printUsage()
		return errHelp
	}
}
