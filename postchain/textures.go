// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"fmt"
	"image"
	_ "image/png" // register PNG decoder
	"io/fs"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gogpu/blockrender/gpu"
)

// TextureManager resolves the static textures sampled by chains.
type TextureManager interface {
	Texture(location string) (gpu.Texture, error)
}

// FSTextures loads textures/effect/<location>.png from a file system and
// keeps each texture for the lifetime of the manager. It must be used on
// the render thread.
type FSTextures struct {
	dev  gpu.Device
	fsys fs.FS

	mu       sync.Mutex
	textures map[string]gpu.Texture
}

// NewFSTextures returns a manager reading from fsys.
func NewFSTextures(dev gpu.Device, fsys fs.FS) *FSTextures {
	return &FSTextures{dev: dev, fsys: fsys, textures: make(map[string]gpu.Texture)}
}

// Texture implements TextureManager.
func (m *FSTextures) Texture(location string) (gpu.Texture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tex, ok := m.textures[location]; ok {
		return tex, nil
	}

	name := "textures/effect/" + location + ".png"
	f, err := m.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("postchain: texture %s: %w", location, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("postchain: decode %s: %w", name, err)
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	tex, err := m.dev.CreateTexture(location, gpu.FormatRGBA8, b.Dx(), b.Dy(), 1, false)
	if err != nil {
		return nil, fmt.Errorf("postchain: texture %s: %w", location, err)
	}
	if err := m.dev.CreateCommandEncoder().WriteToTexture(tex, rgba.Pix, 0, 0, 0, b.Dx(), b.Dy()); err != nil {
		tex.Close()
		return nil, fmt.Errorf("postchain: upload %s: %w", location, err)
	}
	m.textures[location] = tex
	return tex, nil
}

// Close releases every loaded texture.
func (m *FSTextures) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for loc, tex := range m.textures {
		tex.Close()
		delete(m.textures, loc)
	}
}
