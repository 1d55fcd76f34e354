package core

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type ApplicationSettings struct {
	Name   string `toml:"name"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type LogSettings struct {
	Level string `toml:"level"`
}

type RendererSettings struct {
	Validation       bool       `toml:"validation"`
	PresentMode      string     `toml:"present_mode"`
	ClearColor       [4]float32 `toml:"clear_color"`
	FenceTimeoutMS   uint64     `toml:"fence_timeout_ms"`
	AcquireTimeoutMS uint64     `toml:"acquire_timeout_ms"`
}

type AssetSettings struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Application ApplicationSettings `toml:"application"`
	Log         LogSettings         `toml:"log"`
	Renderer    RendererSettings    `toml:"renderer"`
	Assets      AssetSettings       `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSettings{
			Name:   "Voxel Engine",
			PosX:   100,
			PosY:   100,
			Width:  800,
			Height: 600,
		},
		Log: LogSettings{Level: "info"},
		Renderer: RendererSettings{
			Validation:       false,
			PresentMode:      "mailbox",
			ClearColor:       [4]float32{0.01, 0.01, 0.01, 1.0},
			FenceTimeoutMS:   5000,
			AcquireTimeoutMS: 5000,
		},
		Assets: AssetSettings{Dir: "assets", Watch: false},
	}
}

// LoadConfig reads the TOML file at path over the defaults, then applies
// VOXEL_* overrides from the environment and an optional .env file.
// A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	case errors.Is(err, fs.ErrNotExist):
		LogDebug("config file %s not found, using defaults", path)
	default:
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "loading .env")
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("VOXEL_NAME"); v != "" {
		c.Application.Name = v
	}
	if v := getenv("VOXEL_WIDTH"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Wrap(err, "VOXEL_WIDTH")
		}
		c.Application.Width = uint32(n)
	}
	if v := getenv("VOXEL_HEIGHT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Wrap(err, "VOXEL_HEIGHT")
		}
		c.Application.Height = uint32(n)
	}
	if v := getenv("VOXEL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("VOXEL_VALIDATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "VOXEL_VALIDATION")
		}
		c.Renderer.Validation = b
	}
	if v := getenv("VOXEL_PRESENT_MODE"); v != "" {
		c.Renderer.PresentMode = v
	}
	if v := getenv("VOXEL_ASSETS_DIR"); v != "" {
		c.Assets.Dir = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return errors.Newf("window size %dx%d must be non-zero", c.Application.Width, c.Application.Height)
	}
	switch strings.ToLower(c.Renderer.PresentMode) {
	case "mailbox", "fifo", "immediate":
	default:
		return errors.Newf("unknown present mode %q", c.Renderer.PresentMode)
	}
	if c.Renderer.FenceTimeoutMS == 0 || c.Renderer.AcquireTimeoutMS == 0 {
		return errors.New("renderer timeouts must be positive")
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
