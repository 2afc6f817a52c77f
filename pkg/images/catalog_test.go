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

package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
)

const gib = uint64(1024 * 1024 * 1024)

func TestByID(t *testing.T) {
	catalog := New(t.TempDir())

	img, found := catalog.ByID("ubuntu-2404-server")
	require.True(t, found)
	assert.Equal(t, "Ubuntu 24.04 Server", img.Name)
	assert.Equal(t, "amd64", img.Architecture)

	_, found = catalog.ByID("arch-btw")
	assert.False(t, found)
}

func TestRecommendedFor(t *testing.T) {
	catalog := New(t.TempDir())

	lightweight := catalog.RecommendedFor("lightweight")
	require.Len(t, lightweight, 1)
	assert.Equal(t, "debian-12-minimal", lightweight[0].ID)

	assert.Equal(t, catalog.All(), catalog.RecommendedFor(""))
	assert.Empty(t, catalog.RecommendedFor("gaming"))
}

func TestAIOptimized(t *testing.T) {
	catalog := New(t.TempDir())

	optimized := catalog.AIOptimized()
	require.NotEmpty(t, optimized)
	for _, img := range optimized {
		assert.True(t, img.AIOptimized, img.ID)
	}

	ids := make(map[string]bool)
	for _, img := range optimized {
		ids[img.ID] = true
	}
	assert.True(t, ids["ubuntu-2404-desktop"])
	assert.False(t, ids["debian-12-minimal"])
}

func TestSuitable(t *testing.T) {
	catalog := New(t.TempDir())

	p, err := plan.New(device.Device{Name: "sdd", Size: 128 * gib, Removable: true}, plan.ModeFullWipe, "")
	require.NoError(t, err)

	// A 20 GiB root takes every builtin image.
	assert.Len(t, catalog.Suitable(p), len(catalog.All()))

	// A 4 GiB root fits only the minimal image after extraction.
	small := &plan.Plan{
		Device: device.Device{Name: "sdd", Size: 128 * gib},
		Mode:   plan.ModeFullWipe,
		Partitions: []plan.PartitionSpec{
			{Index: 1, Role: plan.RoleRoot, Filesystem: plan.FSExt4, Size: 4 * gib, Action: plan.ActionCreate},
		},
	}
	suitable := catalog.Suitable(small)
	require.Len(t, suitable, 1)
	assert.Equal(t, "debian-12-minimal", suitable[0].ID)
}

func TestCacheScan(t *testing.T) {
	cacheDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "ubuntu-22.04.5-live-server-amd64.iso"), []byte("iso"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "ubuntu-24.04.2-desktop-amd64.iso"), []byte("iso"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "random-image.iso"), []byte("iso"), 0o644))

	catalog := New(cacheDir)

	// 22.04 is not a builtin release and gets added from the cache.
	img, found := catalog.ByID("ubuntu-2204-server")
	require.True(t, found)
	assert.Equal(t, uint64(3), img.Size)

	// 24.04 is builtin; the cached copy must not shadow its metadata.
	img, found = catalog.ByID("ubuntu-2404-desktop")
	require.True(t, found)
	assert.NotEmpty(t, img.SHA256)

	// Unrecognized filenames are ignored.
	assert.Len(t, catalog.All(), len(builtinImages())+1)
}

func TestCachedPathFindsScannedFilenames(t *testing.T) {
	cacheDir := t.TempDir()
	serverPath := filepath.Join(cacheDir, "ubuntu-22.04.5-live-server-amd64.iso")
	require.NoError(t, os.WriteFile(serverPath, []byte("iso"), 0o644))
	debianPath := filepath.Join(cacheDir, "debian-12.7.0-amd64-netinst.iso")
	require.NoError(t, os.WriteFile(debianPath, []byte("iso"), 0o644))

	catalog := New(cacheDir)

	// An image the scan itself discovered must count as cached under
	// the filename it was discovered at.
	img, found := catalog.ByID("ubuntu-2204-server")
	require.True(t, found)
	cachedPath, cached := catalog.CachedPath(img)
	require.True(t, cached)
	assert.Equal(t, serverPath, cachedPath)
	assert.True(t, catalog.IsCached(img))

	// Same for a builtin release cached under its distribution
	// filename instead of <ID>.iso.
	img, found = catalog.ByID("debian-12-minimal")
	require.True(t, found)
	cachedPath, cached = catalog.CachedPath(img)
	require.True(t, cached)
	assert.Equal(t, debianPath, cachedPath)

	// A builtin with a published digest still verifies the scanned
	// file; mismatching content must not count as cached.
	desktopPath := filepath.Join(cacheDir, "ubuntu-24.04.2-desktop-amd64.iso")
	require.NoError(t, os.WriteFile(desktopPath, []byte("iso"), 0o644))
	catalog = New(cacheDir)
	img, found = catalog.ByID("ubuntu-2404-desktop")
	require.True(t, found)
	assert.False(t, catalog.IsCached(img))
}

func TestImageFromFilename(t *testing.T) {
	testCases := []struct {
		filename   string
		expectedID string
		found      bool
	}{
		{"ubuntu-24.04.2-desktop-amd64.iso", "ubuntu-2404-desktop", true},
		{"ubuntu-22.04.5-live-server-amd64.iso", "ubuntu-2204-server", true},
		{"debian-12.7.0-amd64-netinst.iso", "debian-12-minimal", true},
		{"kali-linux-2024.4-live-amd64.iso", "kali-2024-live", true},
		{"Ubuntu-24.04-Desktop.ISO", "ubuntu-2404-desktop", true},
		{"fedora-41.iso", "", false},
	}
	for i, testCase := range testCases {
		img, found := imageFromFilename(testCase.filename, 100)
		if found != testCase.found {
			t.Fatalf("case %v: expected found %v; got %v", i, testCase.found, found)
		}
		if img.ID != testCase.expectedID {
			t.Fatalf("case %v: expected ID %v; got %v", i, testCase.expectedID, img.ID)
		}
	}
}

func TestIsCachedVerifiesDigest(t *testing.T) {
	cacheDir := t.TempDir()
	catalog := New(cacheDir)

	img := Image{
		ID:     "test-image",
		SHA256: "15a86460e21e718339688eeb2bd02a6663b889078e4ce98ef5d124b278ad94f2",
	}
	assert.False(t, catalog.IsCached(img))

	path := filepath.Join(cacheDir, "test-image.iso")
	require.NoError(t, os.WriteFile(path, []byte("weirding module image payload\n"), 0o644))
	assert.True(t, catalog.IsCached(img))

	cachedPath, cached := catalog.CachedPath(img)
	require.True(t, cached)
	assert.Equal(t, path, cachedPath)

	// Corrupt the cached copy: it must stop counting as cached.
	require.NoError(t, os.WriteFile(path, []byte("not the payload\n"), 0o644))
	assert.False(t, catalog.IsCached(img))
}

func TestIsCachedWithoutDigest(t *testing.T) {
	cacheDir := t.TempDir()
	catalog := New(cacheDir)

	img := Image{ID: "unhashed"}
	assert.False(t, catalog.IsCached(img))

	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "unhashed.iso"), []byte("iso"), 0o644))
	assert.True(t, catalog.IsCached(img))
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("weirding module image payload\n"), 0o644))

	matched, err := VerifyFile(path, "15a86460e21e718339688eeb2bd02a6663b889078e4ce98ef5d124b278ad94f2")
	require.NoError(t, err)
	assert.True(t, matched)

	// Case-insensitive comparison.
	matched, err = VerifyFile(path, "15A86460E21E718339688EEB2BD02A6663B889078E4CE98EF5D124B278AD94F2")
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = VerifyFile(path, "bc197055f1a88b2298570e92d1a32d3ae1549e55b83b164acad382dbacb204e9")
	require.NoError(t, err)
	assert.False(t, matched)

	_, err = VerifyFile(filepath.Join(t.TempDir(), "missing"), "00")
	assert.Error(t, err)
}
