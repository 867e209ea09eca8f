// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed chains
var builtin embed.FS

// BuiltinNames lists the embedded chains by file name.
func BuiltinNames() []string {
	entries, _ := fs.ReadDir(builtin, "chains")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// BuiltinConfig returns an embedded chain, e.g. "blur.toml".
func BuiltinConfig(name string) (*Config, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	data, err := builtin.ReadFile(path.Join("chains", name))
	if err != nil {
		return nil, fmt.Errorf("postchain: builtin %s: %w", name, err)
	}
	return ParseConfig(data, format)
}
