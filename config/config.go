package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tsawler/pageview/view"
)

// FileName is the configuration file looked up by Find.
const FileName = "pageview.toml"

// ErrInvalid is wrapped by Validate for out-of-range values.
var ErrInvalid = errors.New("config: invalid value")

// Config represents a pageview.toml configuration file.
type Config struct {
	// DPI sets both resolutions; DPIX and DPIY override it per axis.
	DPI  int `toml:"dpi,omitempty"`
	DPIX int `toml:"dpi_x,omitempty"`
	DPIY int `toml:"dpi_y,omitempty"`

	// Zoom is "fit", "fit-width", "fit-height" or a factor such as "1.5".
	// The zero value means unset.
	Zoom view.Zoom `toml:"zoom,omitempty"`

	Rotation int `toml:"rotation,omitempty"`

	// TileMax is the largest tile rendered, as [width, height].
	TileMax []int `toml:"tile_max,omitempty"`

	// LazyDelay debounces scroll-driven renders, e.g. "250ms".
	LazyDelay *time.Duration `toml:"lazy_delay,omitempty"`

	// Concurrency bounds parallel page renders in the command line tool.
	Concurrency int `toml:"concurrency,omitempty"`

	// Output is the file name pattern for rendered pages; %d is replaced
	// by the page number.
	Output string `toml:"output,omitempty"`
}

// Load loads a configuration file from the given path and validates it.
func Load(path string) (*Config, error) {
	var config Config
	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing %s: %w: unknown key %s", path, ErrInvalid, undecoded[0])
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &config, nil
}

// Find searches for pageview.toml starting from dir and walking up to
// parent directories. Returns the path and the parsed config, or
// ("", nil, nil) if not found.
func Find(dir string) (string, *Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return "", nil, err
			}
			return path, config, nil
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges. Zero values mean "not set".
func (c *Config) Validate() error {
	for name, v := range map[string]int{"dpi": c.DPI, "dpi_x": c.DPIX, "dpi_y": c.DPIY, "concurrency": c.Concurrency} {
		if v < 0 {
			return fmt.Errorf("%w: %s = %d", ErrInvalid, name, v)
		}
	}
	if c.TileMax != nil && (len(c.TileMax) != 2 || c.TileMax[0] <= 0 || c.TileMax[1] <= 0) {
		return fmt.Errorf("%w: tile_max must be two positive integers, got %v", ErrInvalid, c.TileMax)
	}
	if c.LazyDelay != nil && *c.LazyDelay < 0 {
		return fmt.Errorf("%w: lazy_delay = %v", ErrInvalid, *c.LazyDelay)
	}
	return nil
}

// Resolution returns the horizontal and vertical DPI, or zeros when unset.
func (c *Config) Resolution() (x, y int) {
	x, y = c.DPI, c.DPI
	if c.DPIX > 0 {
		x = c.DPIX
	}
	if c.DPIY > 0 {
		y = c.DPIY
	}
	if x == 0 || y == 0 {
		return 0, 0
	}
	return x, y
}

// ViewOptions converts the configuration into viewer options. Unset values
// produce no option.
func (c *Config) ViewOptions() []view.Option {
	var opts []view.Option
	if x, y := c.Resolution(); x > 0 {
		opts = append(opts, view.WithDPI(x, y))
	}
	if c.Zoom.Valid() {
		opts = append(opts, view.WithZoom(c.Zoom))
	}
	if c.Rotation != 0 {
		opts = append(opts, view.WithRotation(c.Rotation))
	}
	if len(c.TileMax) == 2 {
		opts = append(opts, view.WithTileMax(c.TileMax[0], c.TileMax[1]))
	}
	if c.LazyDelay != nil {
		opts = append(opts, view.WithLazyDelay(*c.LazyDelay))
	}
	return opts
}
