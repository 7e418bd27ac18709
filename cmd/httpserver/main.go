package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/config"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/duck"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/fileserver"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/server"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/webroot"
)

func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("httpserver", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON config file")
	port := fs.Int("port", 0, "port to listen on")
	webrootDir := fs.String("webroot", "", "directory to serve files from")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	// flags given on the command line win over the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "webroot":
			cfg.Webroot = *webrootDir
		}
	})
	return cfg, cfg.Validate()
}

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}

	root, err := webroot.Open(cfg.Webroot)
	if err != nil {
		logger.Fatalf("Error opening webroot: %v", err)
	}
	defer root.Close()

	s, err := server.Serve(uint16(cfg.Port), fileserver.Handler(root, logger),
		server.WithLogger(logger),
		server.WithTransform(duck.Say),
		server.WithPingInterval(time.Duration(cfg.PingInterval)),
	)
	if err != nil {
		logger.Fatalf("Error starting server: %v", err)
	}
	defer s.Close()
	logger.Printf("Server started on port %d serving %s", s.Port, root.Dir())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Println("Server gracefully stopped")
}
