// Package configs provides embedded configuration templates for ftagsd.
//
// Templates are embedded at build time using Go's //go:embed directive,
// so they are available in source builds and binary distributions alike.
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/ftagsd/config.yaml)
//  3. Project config (.ftagsd.yaml)
//  4. Environment variables (FTAGSD_*)
package configs

import _ "embed"

// UserConfigTemplate is the template written by `ftagsd init --global`
// at ~/.config/ftagsd/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template written by `ftagsd init` at
// .ftagsd.yaml in the project root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
