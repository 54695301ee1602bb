package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge"
	"github.com/surveyforge/surveyforge/config"
	"github.com/surveyforge/surveyforge/util"
	"github.com/urfave/cli/v3"
)

var app *surveyforge.Application

func captureOsInterrupt() chan bool {
	quit := make(chan bool)

	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		for sig := range c {
			logrus.Infof("captured %v, stopping and exiting.", sig)

			quit <- true
			close(quit)

			break
		}
	}()

	return quit
}

func main() { os.Exit(mainReturnWithCode()) }

func mainReturnWithCode() int {
	logrus.SetLevel(logrus.DebugLevel)

	cfg := config.LoadConfig(".")

	app = surveyforge.NewApplication(cfg)
	defer util.Close(app)

	cmd := &cli.Command{
		Name:  "surveyforge",
		Usage: "survey and voting service",
		Commands: []*cli.Command{
			{
				Name:  "serve-public",
				Usage: "Serve the voter-facing API and websocket feed",
				Action: func(_ context.Context, _ *cli.Command) error {
					if err := app.Migrate(); err != nil {
						return err
					}

					return app.ServePublic(captureOsInterrupt())
				},
			},
			{
				Name:  "serve-private",
				Usage: "Serve the admin API and metrics",
				Action: func(_ context.Context, _ *cli.Command) error {
					return app.ServePrivate(captureOsInterrupt())
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Action: func(_ context.Context, _ *cli.Command) error {
					return app.Migrate()
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.Error(err)

		return 1
	}

	return 0
}
