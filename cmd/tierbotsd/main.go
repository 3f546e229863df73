package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelletier/go-toml"

	tierbots "github.com/tierbots/server"
)

func main() {
	configPath := flag.String("config", "tierbots.toml", "path to the server's TOML configuration file")
	flag.Parse()

	log := slog.Default()

	uc, err := loadOrCreateUserConfig(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	conf, err := uc.Config(nil)
	if err != nil {
		log.Error("build config", "error", err)
		os.Exit(1)
	}

	srv, err := conf.New()
	if err != nil {
		log.Error("start server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// loadOrCreateUserConfig reads path, writing out tierbots.DefaultConfig()'s
// TOML encoding first if the file does not yet exist.
func loadOrCreateUserConfig(path string) (tierbots.UserConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		uc := tierbots.DefaultConfig()
		out, mErr := toml.Marshal(uc)
		if mErr != nil {
			return uc, mErr
		}
		if wErr := os.WriteFile(path, out, 0o644); wErr != nil {
			return uc, wErr
		}
		return uc, nil
	}
	if err != nil {
		return tierbots.UserConfig{}, err
	}

	uc := tierbots.DefaultConfig()
	if err := toml.Unmarshal(data, &uc); err != nil {
		return tierbots.UserConfig{}, err
	}
	return uc, nil
}
