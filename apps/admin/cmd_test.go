package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
	schedsvc "github.com/bangkihwa/studylink/services/scheduler"
	"github.com/bangkihwa/studylink/tests"
)

const farDue = "2099-12-31"

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)
	return &commandLine{
		users:     env.Users,
		svc:       env.Svc,
		scheduler: schedsvc.New(env.Svc, testutil.NewLogger(), core.SchedulerConfig{Spec: "@every 1m"}),
		in:        strings.NewReader(""),
		out:       out,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	runCLITests(t, cli, []cliTest{{name: "memory engine", args: []string{"migrate", "up"}, wantErr: errNoSQLDatabase}})

	cli.db = testutil.OpenSQLite(t)
	runMigrationFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	})
}

func Test_commandLine_publishDue(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()
	teacher := env.Teacher(t, "kim")
	cls := env.Class(teacher, "Math A")

	due, err := env.Svc.CreateTest(ctx, teacher, assessment.NewTest{
		Title: "Due", ClassID: cls.ID, DueDate: farDue, PublishAt: "2020-01-01T09:00:00+09:00",
	})
	require.NoError(t, err)
	later, err := env.Svc.CreateTest(ctx, teacher, assessment.NewTest{
		Title: "Later", ClassID: cls.ID, DueDate: farDue, PublishAt: "2099-01-01T09:00:00+09:00",
	})
	require.NoError(t, err)

	runCLITests(t, cli, []cliTest{{name: "publish", args: []string{"publishdue"}}})
	assert.Contains(t, out.String(), "1 due, 1 published, 0 failed")

	got, err := env.Tests.GetTestByID(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)
	got, err = env.Tests.GetTestByID(ctx, later.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublished)

	out.Reset()
	runCLITests(t, cli, []cliTest{{name: "nothing left", args: []string{"publishdue"}}})
	assert.Contains(t, out.String(), "0 due, 0 published, 0 failed")
}

func Test_commandLine_deleteTest(t *testing.T) {
	cli, env, _ := setup(t)
	teacher := env.Teacher(t, "kim")
	cls := env.Class(teacher, "Math A")
	kept := env.CreateTest(t, teacher, cls, "Kept", farDue, true)
	deleted := env.CreateTest(t, teacher, cls, "Deleted", farDue, true)
	forced := env.CreateTest(t, teacher, cls, "Forced", farDue, false)
	id := func(test assessment.Test) string { return strconv.FormatInt(test.ID, 10) }

	type extra struct {
		terminal bool
		answer   string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"deletetest"}, wantErr: errHelp},
		{name: "unknown test", args: []string{"deletetest", "-id", "999", "-yes"}, wantErr: assessment.ErrTestNotFound},
		{name: "not a terminal", args: []string{"deletetest", "-id", id(kept)}, wantErr: errNotConfirmed},
		{name: "declined", args: []string{"deletetest", "-id", id(kept)}, extra: extra{terminal: true, answer: "n\n"}, wantErr: errNotConfirmed},
		{name: "confirmed", args: []string{"deletetest", "-id", id(deleted)}, extra: extra{terminal: true, answer: "Y\n"}},
		{name: "-yes", args: []string{"deletetest", "-id", id(forced), "-yes"}},
	}
	for _, tt := range tests {
		ex, _ := tt.extra.(extra)
		isTerminalFunc = func(int) bool { return ex.terminal }
		cli.in = strings.NewReader(ex.answer)
		runCLITests(t, cli, []cliTest{tt})
	}

	ctx := context.Background()
	_, err := env.Tests.GetTestByID(ctx, kept.ID)
	assert.NoError(t, err)
	for _, gone := range []assessment.Test{deleted, forced} {
		_, err = env.Tests.GetTestByID(ctx, gone.ID)
		assert.ErrorIs(t, err, assessment.ErrTestNotFound)
	}
}

func Test_commandLine_token(t *testing.T) {
	cli, env, out := setup(t)
	teacher := env.Teacher(t, "kim")
	id := strconv.FormatInt(teacher.ID, 10)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "unknown user", args: []string{"token", "-id", "999"}, wantErr: user.ErrNotFound},
		{name: "missing role", args: []string{"token", "-id", id, "-role", user.RoleAdmin}, wantErr: errMissingRole},
	})

	out.Reset()
	runCLITests(t, cli, []cliTest{{name: "teacher", args: []string{"token", "-id", id, "-role", user.RoleTeacher}}})

	claims := jwt.MapClaims{}
	_, _, err := new(jwt.Parser).ParseUnverified(strings.TrimSpace(out.String()), claims)
	require.NoError(t, err)
	assert.Equal(t, id, claims["sub"])
	assert.Equal(t, true, claims["is_teacher"])
}
