// Package main provides the registry-mock command, an in-memory model registry for local
// development and demos of the modelreg client.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/modelreg/internal/config"
	gh "github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/logger"
	"github.com/clean-dependency-project/modelreg/internal/mockregistry"
)

func main() {
	app := &cli.App{
		Name:  "registry-mock",
		Usage: "Serve an in-memory model registry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML configuration file (server section)",
				EnvVars: []string{"MODELREG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (defaults to server.addr)",
			},
			&cli.StringFlag{
				Name:    "seed",
				Usage:   "YAML file with users, packages and artifacts to preload",
				EnvVars: []string{"REGISTRY_MOCK_SEED"},
			},
			&cli.BoolFlag{
				Name:  "github-licenses",
				Usage: "look up repository licenses on GitHub during license checks",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"REGISTRY_MOCK_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "json",
				Usage: "log format (json, text)",
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runServer loads configuration and seed data and serves until interrupted.
func runServer(c *cli.Context) error {
	logs, err := logger.New(c.String("log-level"), c.String("log-format"))
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	seed := mockregistry.DefaultSeed()
	if path := c.String("seed"); path != "" {
		if seed, err = mockregistry.LoadSeed(path); err != nil {
			return err
		}
	}

	opts := mockregistry.Options{
		Server: cfg.Server,
		Seed:   seed,
		Logger: logs,
	}
	if c.Bool("github-licenses") {
		probe := gh.NewClient(cfg.GitHub.Token)
		if cfg.GitHub.APIURL != "" {
			if probe, err = gh.NewClientForURL(cfg.GitHub.Token, cfg.GitHub.APIURL); err != nil {
				return err
			}
		}
		opts.Licenses = probe
	}

	srv, err := mockregistry.New(opts)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	if cfg.Server.JWTSecret == config.DefaultConfig().Server.JWTSecret {
		logs.Warn("using the default jwt secret, set MODELREG_JWT_SECRET outside local development")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}
