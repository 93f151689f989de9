// Package configs provides the embedded configuration template for
// docquery.
//
// The template is embedded at build time with //go:embed so it ships
// in every distribution. It documents the full configuration surface;
// `docquery init` (and the README) point users at it. The effective
// configuration is resolved by internal/config.Load():
//
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/docquery/config.yaml)
//  3. Project config (docquery.yaml in the working directory)
//  4. Environment variables (DOCQUERY_*)
package configs

import _ "embed"

// ConfigTemplate is the annotated docquery.yaml example.
//
//go:embed docquery.example.yaml
var ConfigTemplate string
