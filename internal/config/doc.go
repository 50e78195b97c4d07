// Package config defines the assembler settings and provides helpers to
// load, validate and save them in YAML format.
//
// Defaults describe the zone.js package built with bazel and archived with
// npm pack, so a checkout without a settings file still works.
package config
