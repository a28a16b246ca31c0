package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"agri-price-tracker/internal/config"
	"agri-price-tracker/internal/logger"
)

// app carries what every command shares.
type app struct {
	cfg *config.Config
	log *logrus.Logger
}

type options struct {
	Collect collectCommand `command:"collect" description:"Fetch prices and trends from KAMIS and store them"`
	Analyze analyzeCommand `command:"analyze" description:"Write the analysis report workbook from stored data"`
	All     allCommand     `command:"all" description:"Collect, then analyze"`
	Status  statusCommand  `command:"status" description:"Show database statistics and registered products"`
	History historyCommand `command:"history" description:"Show recent collection runs"`
	Daemon  daemonCommand  `command:"daemon" description:"Collect on a fixed interval until interrupted"`
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Debug("No .env file found")
	}

	a := &app{cfg: cfg, log: log}
	opts := options{}
	opts.Collect.app = a
	opts.Analyze.app = a
	opts.All.collect.app = a
	opts.All.analyze.app = a
	opts.Status.app = a
	opts.History.app = a
	opts.Daemon.app = a

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				return
			}
			os.Exit(2)
		}
		if errors.Is(err, config.ErrMissingCredentials) {
			log.Error(err)
			os.Exit(1)
		}
		log.Errorf("Command failed: %v", err)
	}
}
