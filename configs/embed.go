// Package configs embeds the configuration templates written by
// `docsift config init`.
package configs

import _ "embed"

// UserConfigTemplate seeds ~/.config/docsift/config.yaml with the
// machine-wide settings: provider endpoints and qdrant connection.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate seeds .docsift.yaml at a corpus root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
