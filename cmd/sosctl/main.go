package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crimewatch/backend/internal/logger"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	Name  = "sosctl"
	Usage = "Send SOS alerts and watch notification feeds"
)

var log *logrus.Entry

func main() {
	app := setUpApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "server",
			Usage:  "base URL of the CrimeWatch API",
			Value:  "http://localhost:8080",
			EnvVar: "SERVER_URL",
		},
		cli.StringFlag{
			Name:   "token",
			Usage:  "bearer token; a citizen token is requested when empty",
			EnvVar: "SOS_TOKEN",
		},
		cli.StringFlag{
			Name:   "officer-key",
			Usage:  "request an officer token with this key",
			EnvVar: "OFFICER_KEY",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "warn",
		},
	}
	app.Before = func(c *cli.Context) error {
		log = logger.NewLogger(Name, c.String("log-level"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   "send",
			Usage:  "Send an SOS alert from a location with an optional message and recording",
			Action: sendCommand,
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "lat", Usage: "latitude of the reporter"},
				cli.Float64Flag{Name: "lng", Usage: "longitude of the reporter"},
				cli.StringFlag{Name: "message, m", Usage: "text of the alert"},
				cli.StringFlag{Name: "recording, r", Usage: "audio file replayed as the voice message"},
				cli.DurationFlag{Name: "record-for", Usage: "how long the recording is captured", Value: time.Second},
				cli.IntFlag{Name: "max-bytes", Usage: "cap on the captured recording, 0 for none"},
				cli.StringFlag{Name: "name", Usage: "reporter name"},
				cli.StringFlag{Name: "contact", Usage: "reporter contact info"},
			},
		},
		{
			Name:   "watch",
			Usage:  "Stream the notification feed and alerts of the token's identity",
			Action: watchCommand,
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "mark-all-read", Usage: "mark the feed read once it is loaded"},
			},
		},
	}
	return app
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serverToken(ctx context.Context, c *cli.Context) (string, error) {
	if t := c.GlobalString("token"); t != "" {
		return t, nil
	}
	tok, err := fetchToken(ctx, c.GlobalString("server"), c.GlobalString("officer-key"), log)
	if err != nil {
		return "", cli.NewExitError(fmt.Sprintf("failed to get token: %v", err), 1)
	}
	log.WithFields(logrus.Fields{"user_id": tok.UserID, "role": tok.Role}).Info("token issued")
	return tok.Token, nil
}
