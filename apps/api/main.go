package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/apps"
	echoapi "github.com/bangkihwa/studylink/apps/api/echo"
	"github.com/bangkihwa/studylink/core"
	logsvc "github.com/bangkihwa/studylink/services/logger"
	schedsvc "github.com/bangkihwa/studylink/services/scheduler"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	stores, err := apps.OpenStores(conf, true /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	// set up services
	mailSvc := apps.NewMailService(conf, logger)
	assessmentSvc := apps.NewAssessmentService(conf, stores, mailSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")
	apps.PrintConfig(os.Stdout, conf)

	var scheduler *schedsvc.Scheduler
	if conf.Scheduler.Enabled {
		scheduler = schedsvc.New(assessmentSvc, logger, conf.Scheduler)
		if err := scheduler.Start(); err != nil {
			logger.Fatal(fmt.Sprintf("starting scheduler: %v", err), err)
		}
	}

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:    conf.Server.Address(),
		Users:      stores.Users,
		Assessment: assessmentSvc,
		Logger:     logger,
		SignalShutdown: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default: // already shutting down
			}
		},
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address()))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests and the running tick a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop(ctx)
		}
		// asking listener to shutdown and shed load
		if err := server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}
