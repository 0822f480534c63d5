package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sonirico/libevents"
)

func newLogger(config *Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: !config.Logger.Color,
		FullTimestamp: true,
	})
	if lvl, err := logrus.ParseLevel(config.Logger.Level); err == nil {
		log.SetLevel(lvl)
	}
	log.SetOutput(os.Stdout)
	return log
}

func Run() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "loads a document, runs a script against it and fires events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_path",
				Usage:   "sets custom configuration path",
				Aliases: []string{"config", "conf", "c"},
			},
			&cli.StringFlag{
				Name:  "document",
				Usage: "html document to load",
			},
			&cli.StringFlag{
				Name:  "script",
				Usage: "script to run before firing events",
			},
			&cli.StringSliceFlag{
				Name:  "fire",
				Usage: "event to fire, as selector|event[|arg...]",
			},
			&cli.StringFlag{
				Name:  "level",
				Usage: "log level",
			},
		},
		Action: func(c *cli.Context) error {
			config, err := BuildNewConfig(c.String("config_path"))()
			if err != nil {
				return err
			}

			if v := c.String("document"); v != "" {
				config.Document = v
			}
			if v := c.String("script"); v != "" {
				config.Script = v
			}
			if v := c.String("level"); v != "" {
				config.Logger.Level = v
			}
			for _, raw := range c.StringSlice("fire") {
				f, err := ParseFire(raw)
				if err != nil {
					return err
				}
				config.Fire = append(config.Fire, f)
			}

			if err := config.Validate(); err != nil {
				return err
			}

			return play(config, libevents.NewLogrusLogger(newLogger(config)))
		},
	}
}

func main() {
	app := &cli.App{
		Name:     "evplay",
		Usage:    "plays scripted event listeners against an html document",
		Commands: []*cli.Command{Run()},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
