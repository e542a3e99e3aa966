// Package config defines the build manifest read by the bundler and
// provides helpers to load, validate and save it in YAML format.
//
// The Config type describes one application: its entry point, module
// search paths, declared resources, launcher settings and output layout.
package config
