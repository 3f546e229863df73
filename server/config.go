package server

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"
)

// Config contains options for starting a tierbots server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// PersistDir is the directory the world's grid arrays and structured blob
	// are loaded from and saved to.
	PersistDir string
	// CellWidth and CellHeight are the world's size in super-cells, used only
	// when PersistDir does not yet contain a world and a new one must be
	// generated.
	CellWidth, CellHeight int
	// Seed seeds the world generator when a new world is created. Two servers
	// started with the same Seed, CellWidth and CellHeight produce byte
	// identical worlds.
	Seed uint64
	// TickInterval is the wall-clock duration of one game tick.
	TickInterval time.Duration
}

// New creates a Server using the fields of conf, loading the world under
// conf.PersistDir or generating a new one if the directory is empty.
func (conf Config) New() (*Server, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.PersistDir == "" {
		return nil, fmt.Errorf("config: PersistDir must not be empty")
	}
	if conf.CellWidth <= 0 {
		conf.CellWidth = 4
	}
	if conf.CellHeight <= 0 {
		conf.CellHeight = 4
	}
	if conf.TickInterval <= 0 {
		conf.TickInterval = 50 * time.Millisecond
	}
	return newServer(conf)
}

// UserConfig is the user-facing, TOML-friendly configuration for a tierbots
// server. UserConfig may be serialised and is converted to a Config by
// calling UserConfig.Config.
type UserConfig struct {
	World struct {
		// Folder is the directory the world's persisted files live in.
		Folder string
		// CellWidth and CellHeight are the world's size in super-cells when a
		// new world must be generated.
		CellWidth  int
		CellHeight int
		// Seed seeds the world generator. A value of 0 means a random seed is
		// drawn at startup.
		Seed int64
	}
	Server struct {
		// TickMillis is the wall-clock duration of one game tick, in
		// milliseconds.
		TickMillis int
		// LogLevel is one of "debug", "info", "warn" or "error".
		LogLevel string
	}
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.World.Folder = "world"
	c.World.CellWidth = 4
	c.World.CellHeight = 4
	c.World.Seed = 0
	c.Server.TickMillis = 50
	c.Server.LogLevel = "info"
	return c
}

// Config converts a UserConfig to a Config, so that it may be used to start a
// Server.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	level, err := parseLogLevel(uc.Server.LogLevel)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}

	seed := uint64(uc.World.Seed)
	if seed == 0 {
		seed = rand.Uint64()
	}

	return Config{
		Log:          log,
		PersistDir:   uc.World.Folder,
		CellWidth:    uc.World.CellWidth,
		CellHeight:   uc.World.CellHeight,
		Seed:         seed,
		TickInterval: time.Duration(uc.Server.TickMillis) * time.Millisecond,
	}, nil
}

func parseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
