package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/katalix/go-pppoe-link/daemonconfig"
)

var version = "dev"

func parseLogLevel(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func main() {
	cfgPathPtr := flag.String("config", "/etc/pppoelinkd/pppoelinkd.toml", "specify configuration file path")
	logLevelPtr := flag.String("loglevel", "", "override the configured log level (debug, info, warn, error)")
	versionPtr := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionPtr {
		fmt.Println("pppoelinkd", version)
		return
	}

	cfg, err := daemonconfig.LoadFile(*cfgPathPtr)
	if err != nil {
		stdlog.Fatalf("failed to load configuration: %v", err)
	}

	logLevel := cfg.Log.Level
	if *logLevelPtr != "" {
		logLevel = *logLevelPtr
	}

	base := log.NewLogfmtLogger(os.Stderr)
	logger := level.NewFilter(base, parseLogLevel(logLevel))

	app, err := newApplication(logger, cfg, nil)
	if err != nil {
		stdlog.Fatalf("failed to instantiate application: %v", err)
	}

	os.Exit(app.run())
}
