package main

import (
	"errors"

	"github.com/bangkihwa/studylink/storage/database"
)

var (
	runMigrationFunc = database.RunMigration // mockable

	errNoSQLDatabase = errors.New("migrations need a SQL database engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return runMigrationFunc(cli.db, args[0], args[1:]...)
}
