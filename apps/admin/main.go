package main

import (
	"log"
	"os"

	"github.com/bangkihwa/studylink/apps"
	"github.com/bangkihwa/studylink/core"
	logsvc "github.com/bangkihwa/studylink/services/logger"
	schedsvc "github.com/bangkihwa/studylink/services/scheduler"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.Conf
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// set up DB; `migrate` brings the schema up itself
	stores, err := apps.OpenStores(conf, false /* migrate */)
	errAndDie(err)
	defer func() { _ = stores.Close() }()

	// set up services
	svc := apps.NewAssessmentService(conf, stores, apps.NewMailService(conf, appLogger), appLogger)

	// start CLI
	cli := commandLine{
		db:        stores.SQL,
		users:     stores.Users,
		svc:       svc,
		scheduler: schedsvc.New(svc, appLogger, conf.Scheduler),
		in:        os.Stdin,
		out:       os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		_ = stores.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
