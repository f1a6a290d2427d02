// Package config contains the embedded default YAML configuration of
// the node.
package config

import (
	_ "embed"
)

// Default is the default node configuration. It still needs an onion
// address before it validates.
//
//go:embed config.yml
var Default []byte
