// Package config loads pageview.toml files.
//
// A configuration file supplies defaults for the viewer parameters and the
// command line tool:
//
//	dpi = 144
//	zoom = "fit-width"
//	rotation = 90
//	tile_max = [2048, 2048]
//	lazy_delay = "100ms"
//	concurrency = 4
//	output = "out/page-%d.png"
//
// Unset keys keep the viewer defaults. [Config.ViewOptions] turns a loaded
// file into view options.
package config
