// This file is part of Weirding Host Utility
// Copyright (c) 2025 Weirding Host contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package images maintains the catalog of base operating system images
// a module can be built from. It knows the published releases, scans
// the local cache for already-downloaded ISOs and verifies file
// integrity; fetching images over the network is out of scope.
package images

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"k8s.io/klog/v2"
)

const mib = uint64(1024 * 1024)

// extractionFactor approximates how much room an image needs once its
// compressed filesystem is extracted onto the root partition.
const extractionFactor = 2

// Image describes one base operating system image.
type Image struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Version        string   `json:"version"`
	Architecture   string   `json:"architecture"`
	Size           uint64   `json:"size"` // bytes
	SourceURL      string   `json:"sourceURL,omitempty"`
	SHA256         string   `json:"sha256,omitempty"`
	RecommendedFor []string `json:"recommendedFor,omitempty"`
	AIOptimized    bool     `json:"aiOptimized"`
	ContainerReady bool     `json:"containerReady"`
	GPUSupport     []string `json:"gpuSupport,omitempty"`
}

// builtinImages is the catalog of known published releases. Entries
// without a SHA256 are verified only when a local checksum is supplied.
func builtinImages() []Image {
	return []Image{
		{
			ID:             "ubuntu-2404-desktop",
			Name:           "Ubuntu 24.04 Desktop",
			Description:    "Ubuntu 24.04 LTS Desktop with full GUI",
			Version:        "24.04.2",
			Architecture:   "amd64",
			Size:           5900 * mib,
			SourceURL:      "https://releases.ubuntu.com/24.04/ubuntu-24.04.2-desktop-amd64.iso",
			SHA256:         "d7fe3d6a0419667d2f8eff12796996328daa2d4f90cd9f87aa9371b362f987bf",
			RecommendedFor: []string{"desktop", "development", "ai_workloads"},
			AIOptimized:    true,
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		},
		{
			ID:             "ubuntu-2404-server",
			Name:           "Ubuntu 24.04 Server",
			Description:    "Ubuntu 24.04 LTS Server for headless deployment",
			Version:        "24.04.2",
			Architecture:   "amd64",
			Size:           3000 * mib,
			SourceURL:      "https://releases.ubuntu.com/24.04/ubuntu-24.04.2-live-server-amd64.iso",
			SHA256:         "d6dab0c3a657988501b4bd76f1297c053df710e06e0c3aece60dead24f270b4d",
			RecommendedFor: []string{"server", "ai_workloads", "gpu_computing"},
			AIOptimized:    true,
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		},
		{
			ID:             "debian-12-minimal",
			Name:           "Debian 12 Minimal",
			Description:    "Debian 12 (Bookworm) network install",
			Version:        "12",
			Architecture:   "amd64",
			Size:           700 * mib,
			SourceURL:      "https://cdimage.debian.org/debian-cd/current/amd64/iso-cd/",
			RecommendedFor: []string{"general", "lightweight", "servers"},
			AIOptimized:    false,
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		},
		{
			ID:             "kali-2024-live",
			Name:           "Kali Linux 2024 Live",
			Description:    "Kali Linux rolling live image",
			Version:        "2024.4",
			Architecture:   "amd64",
			Size:           4100 * mib,
			SourceURL:      "https://cdimage.kali.org/current/",
			RecommendedFor: []string{"security", "development"},
			AIOptimized:    false,
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		},
	}
}

// Catalog lists available base images, merging the builtin releases
// with whatever ISOs are already present in the local cache directory.
type Catalog struct {
	cacheDir string
	images   []Image

	// cachedFiles maps image IDs to ISOs the cache scan found under
	// their distribution filenames rather than <ID>.iso.
	cachedFiles map[string]string
}

// DefaultCacheDir returns the per-user image cache directory.
func DefaultCacheDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".weirding_cache", "images"), nil
}

// New builds a catalog backed by the given cache directory. A missing
// or unreadable cache directory is not an error; the catalog then
// contains the builtin releases only.
func New(cacheDir string) *Catalog {
	catalog := &Catalog{
		cacheDir:    cacheDir,
		images:      builtinImages(),
		cachedFiles: map[string]string{},
	}

	known := map[string]bool{}
	for _, img := range catalog.images {
		known[img.ID] = true
	}

	matches, err := filepath.Glob(filepath.Join(cacheDir, "*.iso"))
	if err != nil {
		return catalog
	}
	for _, path := range matches {
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		img, found := imageFromFilename(filepath.Base(path), uint64(stat.Size()))
		if !found {
			klog.V(5).InfoS("unrecognized cached image", "path", path)
			continue
		}
		// Remember the file for builtin releases too, so a release
		// cached under its distribution filename counts as cached.
		if _, recognized := catalog.cachedFiles[img.ID]; !recognized {
			catalog.cachedFiles[img.ID] = path
		}
		if known[img.ID] {
			continue
		}
		known[img.ID] = true
		catalog.images = append(catalog.images, img)
		klog.V(4).InfoS("found cached image", "id", img.ID, "path", path)
	}
	return catalog
}

// All returns every image in the catalog.
func (c *Catalog) All() []Image {
	return c.images
}

// ByID looks an image up by its identifier.
func (c *Catalog) ByID(id string) (Image, bool) {
	for _, img := range c.images {
		if img.ID == id {
			return img, true
		}
	}
	return Image{}, false
}

// RecommendedFor returns images recommended for the given use case.
// An empty use case matches everything.
func (c *Catalog) RecommendedFor(useCase string) []Image {
	if useCase == "" {
		return c.images
	}
	var matched []Image
	for _, img := range c.images {
		for _, candidate := range img.RecommendedFor {
			if candidate == useCase {
				matched = append(matched, img)
				break
			}
		}
	}
	return matched
}

// AIOptimized returns images pre-tuned for AI workloads.
func (c *Catalog) AIOptimized() []Image {
	var matched []Image
	for _, img := range c.images {
		if img.AIOptimized {
			matched = append(matched, img)
		}
	}
	return matched
}

// Suitable filters the catalog down to images whose extracted system
// fits the plan's root partition. Dual-use plans carry no root; there
// the single created partition bounds the choice.
func (c *Catalog) Suitable(p *plan.Plan) []Image {
	target := p.Root()
	if target == nil {
		specs := p.CreateSpecs()
		if len(specs) == 0 {
			return nil
		}
		target = &specs[0]
	}

	var matched []Image
	for _, img := range c.images {
		if img.Size*extractionFactor <= target.Size {
			matched = append(matched, img)
		}
	}
	return matched
}

// CachedPath returns the cache location of the image and whether a
// valid cached copy exists. The canonical <ID>.iso location is checked
// first, then any distribution filename the cache scan recognized.
// Cached files with a known digest are verified before being reported
// as usable.
func (c *Catalog) CachedPath(img Image) (string, bool) {
	path := filepath.Join(c.cacheDir, img.ID+".iso")
	if _, err := os.Stat(path); err != nil {
		scanned, found := c.cachedFiles[img.ID]
		if !found {
			return "", false
		}
		path = scanned
		if _, err := os.Stat(path); err != nil {
			return "", false
		}
	}
	if img.SHA256 == "" {
		return path, true
	}
	matched, err := VerifyFile(path, img.SHA256)
	if err != nil || !matched {
		klog.V(4).InfoS("cached image failed verification", "id", img.ID, "path", path)
		return "", false
	}
	return path, true
}

// IsCached reports whether a valid cached copy of the image exists.
func (c *Catalog) IsCached(img Image) bool {
	_, cached := c.CachedPath(img)
	return cached
}

// imageFromFilename derives an image descriptor from a cached ISO
// filename. Only well-known naming patterns are recognized.
func imageFromFilename(filename string, size uint64) (Image, bool) {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "ubuntu") && strings.Contains(name, "24.04"):
		return Image{
			ID:             "ubuntu-2404-desktop",
			Name:           "Ubuntu 24.04 Desktop",
			Description:    "Ubuntu 24.04 LTS Desktop (cached)",
			Version:        "24.04",
			Architecture:   "amd64",
			Size:           size,
			RecommendedFor: []string{"desktop", "development", "ai_workloads"},
			AIOptimized:    true,
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		}, true
	case strings.Contains(name, "ubuntu") && strings.Contains(name, "22.04"):
		return Image{
			ID:             "ubuntu-2204-server",
			Name:           "Ubuntu 22.04 Server",
			Description:    "Ubuntu 22.04 LTS Server (cached)",
			Version:        "22.04",
			Architecture:   "amd64",
			Size:           size,
			RecommendedFor: []string{"server", "ai_workloads", "gpu_computing"},
			AIOptimized:    true,
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		}, true
	case strings.Contains(name, "debian"):
		return Image{
			ID:             "debian-12-minimal",
			Name:           "Debian 12 Minimal",
			Description:    "Debian 12 (Bookworm) (cached)",
			Version:        "12",
			Architecture:   "amd64",
			Size:           size,
			RecommendedFor: []string{"general", "lightweight", "servers"},
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		}, true
	case strings.Contains(name, "kali"):
		return Image{
			ID:             "kali-2024-live",
			Name:           "Kali Linux 2024 Live",
			Description:    "Kali Linux rolling live image (cached)",
			Version:        "2024",
			Architecture:   "amd64",
			Size:           size,
			RecommendedFor: []string{"security", "development"},
			ContainerReady: true,
			GPUSupport:     []string{"intel", "amd", "nvidia"},
		}, true
	}
	return Image{}, false
}
