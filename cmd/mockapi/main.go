package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	"github.com/jrsteele09/go-agency-admin/internal/logging"
	"github.com/jrsteele09/go-agency-admin/server"
	"github.com/rs/zerolog/log"
)

func main() {
	c := config.New()
	logging.Setup(c.GetEnv(), os.Stderr)

	for {
		if err := run(c); err != nil {
			log.Err(err).Msg("Error running mock API")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Mock API stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName() + " API")
	api, err := server.NewInMemory(c, clock.Real())
	if err != nil {
		return fmt.Errorf("server.NewInMemory: %w", err)
	}
	if c.GetEnv() == "DEV" {
		if err := api.SeedDemoData(); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: api, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Mock API listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
