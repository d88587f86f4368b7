package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/daemonrun"
)

func main() {
	var configPath string
	var socketPath string
	var logLevel string
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.StringVar(&socketPath, "socket", "", "override the daemon control socket path")
	flag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := daemonrun.Options{
		LogLevel:   logLevel,
		SocketPath: socketPath,
	}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("w2ed: %v", err)
	}
}
