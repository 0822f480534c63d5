package main

import (
	"os"

	"github.com/pkg/errors"

	"github.com/sonirico/libevents"
	"github.com/sonirico/libevents/jsdom"
)

// play loads the document, runs the script and fires the configured events in order.
func play(config *Config, logger libevents.Logger) error {
	file, err := os.Open(config.Document)
	if err != nil {
		return errors.Wrap(err, "cannot open document")
	}
	defer file.Close()

	doc, err := jsdom.Parse(file)
	if err != nil {
		return err
	}

	rt, err := jsdom.NewRuntime(logger, doc)
	if err != nil {
		return err
	}

	if config.Script != "" {
		src, err := os.ReadFile(config.Script)
		if err != nil {
			return errors.Wrap(err, "cannot read script")
		}
		if _, err := rt.Run(config.Script, string(src)); err != nil {
			return err
		}
	}

	for _, f := range config.Fire {
		log := logger.WithField("selector", f.Selector).WithField("event", f.Event)

		nodes, err := doc.QueryAll(f.Selector)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			log.Warn("no element matches")
			continue
		}

		args := make([]any, len(f.Args))
		for i, a := range f.Args {
			args[i] = a
		}
		for _, node := range nodes {
			ok, err := rt.Fire(rt.Element(node), f.Event, args...)
			if err != nil {
				return errors.Wrapf(err, "firing %s on %s", f.Event, f.Selector)
			}
			log.Infof("fired, proceed=%t", ok)
		}
	}
	return nil
}
