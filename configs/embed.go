// Package configs provides the embedded configuration template for postsearch.
//
// The template is compiled into the binary so `postsearch config init`
// works for every distribution. It is also a valid configuration: loading
// it yields the built-in defaults (see internal/config NewConfig).
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration.
// Written by `postsearch config init` to the user config path, or to the
// path given with --output.
//
//go:embed postsearch.example.yaml
var ConfigTemplate string
