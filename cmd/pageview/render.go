package main

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/pageview"
	"github.com/tsawler/pageview/config"
	"github.com/tsawler/pageview/view"
)

const defaultOutput = "page-%d.png"

type renderFlags struct {
	pages       string
	dpi         int
	zoom        string
	rotate      int
	size        string
	output      string
	concurrency int
}

func renderCmd(cfg *Config) *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render <file.pdf>",
		Short: "Render pages to PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			mergeConfig(cmd, &flags, fileCfg)

			r, err := buildRenderer(args[0], cfg.Password, flags, fileCfg)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), r, flags.output, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.pages, "pages", "", `Pages to render, e.g. "1,3-5" (default all)`)
	cmd.Flags().IntVar(&flags.dpi, "dpi", 72, "Output resolution")
	cmd.Flags().StringVar(&flags.zoom, "zoom", "1", `Zoom factor, or "fit", "fit-width", "fit-height"`)
	cmd.Flags().IntVar(&flags.rotate, "rotate", 0, "Rotation in degrees added to each page's own rotation")
	cmd.Flags().StringVar(&flags.size, "size", "", `Display size as WIDTHxHEIGHT, required by fit zooms`)
	cmd.Flags().StringVarP(&flags.output, "output", "o", defaultOutput, "Output file pattern; %d is replaced by the page number")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "Pages rendered in parallel (default GOMAXPROCS)")
	return cmd
}

// mergeConfig fills flags the user did not set from the configuration file.
func mergeConfig(cmd *cobra.Command, flags *renderFlags, c *config.Config) {
	changed := cmd.Flags().Changed
	if !changed("zoom") && c.Zoom.Valid() {
		flags.zoom = c.Zoom.String()
	}
	if !changed("rotate") && c.Rotation != 0 {
		flags.rotate = c.Rotation
	}
	if !changed("output") && c.Output != "" {
		flags.output = c.Output
	}
	if !changed("concurrency") && c.Concurrency > 0 {
		flags.concurrency = c.Concurrency
	}
	if changed("dpi") {
		// An explicit --dpi wins over per-axis values from the file.
		c.DPI, c.DPIX, c.DPIY = flags.dpi, 0, 0
	}
}

func buildRenderer(path, password string, flags renderFlags, c *config.Config) (*pageview.Renderer, error) {
	r := pageview.Open(path).Password(password)

	if x, y := c.Resolution(); x > 0 {
		r = r.DPI(x, y)
	} else {
		r = r.DPI(flags.dpi, flags.dpi)
	}

	zoom, err := view.ParseZoom(flags.zoom)
	if err != nil {
		return nil, err
	}
	r = r.Zoom(zoom).Rotate(flags.rotate)

	if flags.size != "" {
		w, h, err := parseSize(flags.size)
		if err != nil {
			return nil, err
		}
		r = r.Size(w, h)
	}
	if flags.pages != "" {
		pages, err := parsePageList(flags.pages)
		if err != nil {
			return nil, err
		}
		r = r.Pages(pages...)
	}
	if flags.concurrency > 0 {
		r = r.Concurrency(flags.concurrency)
	}
	return r, nil
}

func runRender(ctx context.Context, r *pageview.Renderer, pattern string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	images, err := r.Render(ctx)
	if err != nil {
		return err
	}
	for _, img := range images {
		name := outputName(pattern, img.Number)
		if err := writePNG(name, img); err != nil {
			return err
		}
		slog.Debug("wrote page", "page", img.Number, "file", name, "size", img.Image.Bounds().Size())
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func writePNG(name string, img pageview.PageImage) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img.Image); err != nil {
		f.Close()
		return fmt.Errorf("encoding page %d: %w", img.Number, err)
	}
	return f.Close()
}

// outputName expands the page number into pattern. A pattern without a
// verb gets the number inserted before its extension.
func outputName(pattern string, page int) string {
	if strings.Contains(pattern, "%d") {
		return strings.Replace(pattern, "%d", strconv.Itoa(page), 1)
	}
	ext := filepath.Ext(pattern)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(pattern, ext), page, ext)
}

// parseSize parses WIDTHxHEIGHT.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fail("invalid size %q: want WIDTHxHEIGHT", s)
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(ws))
	h, err2 := strconv.Atoi(strings.TrimSpace(hs))
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, fail("invalid size %q: want WIDTHxHEIGHT", s)
	}
	return w, h, nil
}

// parsePageList parses a comma separated list of pages and inclusive
// ranges, e.g. "1,3-5".
func parsePageList(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fail("invalid page %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fail("invalid page range %q", part)
			}
		}
		if start < 1 || end < start {
			return nil, fail("invalid page range %q", part)
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return nil, fail("no pages in %q", s)
	}
	return pages, nil
}
