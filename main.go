package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/dvbtuner/config"
)

func main() {
	flags := kong.Parse(&cli)
	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cli.Profile {
		prof, err := os.Create("./cpu.pprof")
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(prof)
		defer pprof.StopCPUProfile()
	}

	path := cli.Config
	if path == "" {
		path = config.FindConfigPath()
	}
	conf, err := config.Load(path)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch flags.Command() {
	case "probe":
		err = probe(conf)
	case "tune <transponder>":
		err = tune(ctx, conf)
	case "azimuth":
		err = azimuth(conf)
	default:
		log.Info("Command not recognized")
	}
	if err != nil {
		log.Error(err)
		stop()
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}
