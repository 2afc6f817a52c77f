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

package installer

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/images"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"github.com/weirdinghost/weirdingctl/pkg/utils"
	"k8s.io/klog/v2"
)

const (
	debianMirror  = "http://deb.debian.org/debian"
	debianRelease = "bookworm"
)

// debootstrapInclude is installed alongside the base system so the
// chroot steps that follow have working tooling.
const debootstrapInclude = "systemd,systemd-sysv,dbus,openssh-server,curl,wget,gnupg,ca-certificates,locales"

// essentialPackages get installed into a debootstrapped system before
// the bootloader step. ISO-extracted systems already ship a kernel.
var essentialPackages = []string{
	"linux-image-amd64",
	"grub-efi-amd64",
	"grub-pc-bin",
	"os-prober",
	"sudo",
}

// essentialDirs must exist in the target root regardless of how it was
// populated.
var essentialDirs = []string{
	"proc", "sys", "dev", "tmp", "var/tmp",
	"opt/weirding/config", "opt/weirding/scripts", "opt/weirding/logs",
	"opt/models", "var/lib/weirding",
}

// squashfsCandidates are the locations live ISOs keep their root
// filesystem in, in probe order.
var squashfsCandidates = []string{
	"casper/filesystem.squashfs",
	"live/filesystem.squashfs",
	"filesystem.squashfs",
}

// ModuleDescriptor is written to /opt/weirding/config/weirding.json in
// the provisioned system so the module can describe itself at runtime.
type ModuleDescriptor struct {
	Version    string        `json:"version"`
	ModuleName string        `json:"moduleName"`
	Created    string        `json:"created"`
	Device     string        `json:"device"`
	Model      string        `json:"model,omitempty"`
	Vendor     string        `json:"vendor,omitempty"`
	Size       uint64        `json:"size"`
	Mode       plan.Mode     `json:"mode"`
	BaseImage  *images.Image `json:"baseImage,omitempty"`
}

// ImageProvisioner populates an applied plan's root filesystem with a
// base operating system, from a cached image or via debootstrap, and
// writes the system configuration the module needs to boot on its own.
type ImageProvisioner struct {
	runner  sys.Runner
	catalog *images.Catalog
}

// NewImageProvisioner returns a provisioner using the given runner and
// image catalog.
func NewImageProvisioner(runner sys.Runner, catalog *images.Catalog) *ImageProvisioner {
	return &ImageProvisioner{runner: runner, catalog: catalog}
}

// Provision installs the base system into the mounted staging area. A
// nil image selects a minimal debootstrap installation. Images must
// already be cached; nothing is downloaded here.
func (ip *ImageProvisioner) Provision(ctx context.Context, p *plan.Plan, staging *Staging, img *images.Image, progress Progress) error {
	report := func(message string) {
		klog.V(3).InfoS("provisioning", "device", p.Device.Path(), "message", message)
		if progress != nil {
			progress(message)
		}
	}
	rootDir := staging.RootDir()

	switch {
	case img == nil:
		report("Installing minimal Debian base system...")
		if err := ip.debootstrap(ctx, rootDir); err != nil {
			return err
		}
	// Server ISOs are installers, not live systems; they cannot be
	// extracted and fall back to debootstrap.
	case strings.Contains(strings.ToLower(img.Name), "server"):
		report(fmt.Sprintf("%v is an installer image; using debootstrap instead...", img.Name))
		if err := ip.debootstrap(ctx, rootDir); err != nil {
			return err
		}
	default:
		report(fmt.Sprintf("Extracting %v...", img.Name))
		if err := ip.extractImage(ctx, staging, *img); err != nil {
			return err
		}
	}

	for _, dir := range essentialDirs {
		if err := os.MkdirAll(path.Join(rootDir, dir), 0o755); err != nil {
			return err
		}
	}

	report("Configuring system...")
	if err := ip.configure(ctx, p, rootDir); err != nil {
		return err
	}

	report("Writing filesystem table...")
	if err := ip.writeFstab(ctx, p, rootDir); err != nil {
		return err
	}

	if img == nil || strings.Contains(strings.ToLower(img.Name), "server") {
		report("Installing kernel and essential packages...")
		if err := ip.installEssentials(ctx, rootDir); err != nil {
			return err
		}
	}

	report("Writing module descriptor...")
	return ip.writeDescriptor(p, rootDir, img)
}

func (ip *ImageProvisioner) debootstrap(ctx context.Context, rootDir string) error {
	_, stderr, err := ip.runner.Run(ctx, "debootstrap",
		"--arch=amd64",
		"--include="+debootstrapInclude,
		debianRelease,
		rootDir,
		debianMirror,
	)
	if err != nil {
		return fmt.Errorf("debootstrap failed; %w; %v", err, stderr)
	}
	return nil
}

// extractImage loop-mounts the cached ISO, finds the live squashfs
// inside and copies its contents into the staging root.
func (ip *ImageProvisioner) extractImage(ctx context.Context, staging *Staging, img images.Image) error {
	imagePath, cached := ip.catalog.CachedPath(img)
	if !cached {
		return fmt.Errorf("image %v is not available locally; download it to the cache first", img.ID)
	}

	isoDir := path.Join(staging.Dir(), "iso")
	squashfsDir := path.Join(staging.Dir(), "squashfs")
	for _, dir := range []string{isoDir, squashfsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if _, _, err := ip.runner.Run(ctx, "mount", "-o", "loop,ro", imagePath, isoDir); err != nil {
		return fmt.Errorf("unable to mount image %v; %w", imagePath, err)
	}
	defer func() {
		if _, _, err := ip.runner.Run(ctx, "umount", isoDir); err != nil {
			klog.ErrorS(err, "unable to unmount image", "dir", isoDir)
		}
	}()

	var squashfsPath string
	for _, candidate := range squashfsCandidates {
		candidatePath := path.Join(isoDir, candidate)
		if _, err := os.Stat(candidatePath); err == nil {
			squashfsPath = candidatePath
			break
		}
	}
	if squashfsPath == "" {
		return fmt.Errorf("no root filesystem found in image %v", img.ID)
	}

	if _, _, err := ip.runner.Run(ctx, "mount", "-t", "squashfs", "-o", "loop,ro", squashfsPath, squashfsDir); err != nil {
		return fmt.Errorf("unable to mount root filesystem of %v; %w", img.ID, err)
	}
	defer func() {
		if _, _, err := ip.runner.Run(ctx, "umount", squashfsDir); err != nil {
			klog.ErrorS(err, "unable to unmount root filesystem", "dir", squashfsDir)
		}
	}()

	if _, stderr, err := ip.runner.Run(ctx, "rsync", "-a", squashfsDir+"/", staging.RootDir()+"/"); err != nil {
		return fmt.Errorf("filesystem extraction failed; %w; %v", err, stderr)
	}
	return nil
}

// configure writes the minimal system identity: hostname, hosts,
// wired DHCP networking, DNS, locale and timezone.
func (ip *ImageProvisioner) configure(ctx context.Context, p *plan.Plan, rootDir string) error {
	moduleName := moduleNameFromPlan(p)

	if err := os.MkdirAll(path.Join(rootDir, "etc/systemd/network"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(path.Join(rootDir, "etc/default"), 0o755); err != nil {
		return err
	}

	files := map[string]string{
		"etc/hostname": moduleName + "\n",
		"etc/hosts": fmt.Sprintf(`127.0.0.1	localhost
127.0.1.1	%v

::1     localhost ip6-localhost ip6-loopback
ff02::1 ip6-allnodes
ff02::2 ip6-allrouters
`, moduleName),
		"etc/systemd/network/20-wired.network": `[Match]
Name=en*

[Network]
DHCP=yes

[DHCP]
UseDNS=yes
UseRoutes=yes
`,
		"etc/resolv.conf": `nameserver 8.8.8.8
nameserver 1.1.1.1
`,
		"etc/locale.gen":     "en_US.UTF-8 UTF-8\n",
		"etc/default/locale": "LANG=en_US.UTF-8\n",
	}
	for name, content := range files {
		if err := os.WriteFile(path.Join(rootDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}

	if _, _, err := ip.runner.Run(ctx, "chroot", rootDir, "ln", "-sf", "/usr/share/zoneinfo/UTC", "/etc/localtime"); err != nil {
		klog.V(3).InfoS("timezone setup failed; continuing", "err", err)
	}
	if _, _, err := ip.runner.Run(ctx, "chroot", rootDir, "locale-gen"); err != nil {
		klog.V(3).InfoS("locale-gen failed; continuing", "err", err)
	}

	// Not every base image ships every unit yet.
	for _, service := range []string{"systemd-networkd", "systemd-resolved", "ssh"} {
		if _, _, err := ip.runner.Run(ctx, "chroot", rootDir, "systemctl", "enable", service); err != nil {
			klog.V(3).InfoS("unable to enable service; continuing", "service", service, "err", err)
		}
	}
	return nil
}

// writeFstab generates /etc/fstab from the plan, by partition UUID
// where blkid can report one and by device path otherwise.
func (ip *ImageProvisioner) writeFstab(ctx context.Context, p *plan.Plan, rootDir string) error {
	var entries []string
	for _, spec := range p.CreateSpecs() {
		if spec.MountPoint == "" {
			continue
		}
		devicePath := p.Device.PartitionPath(spec.Index)
		deviceSpec := devicePath
		if uuid := ip.partitionUUID(ctx, devicePath); uuid != "" {
			deviceSpec = "UUID=" + uuid
		}

		switch spec.MountPoint {
		case "/":
			entries = append(entries, fmt.Sprintf("%v / ext4 defaults 0 1", deviceSpec))
		case consts.EFIMountPoint:
			entries = append(entries, fmt.Sprintf("%v %v vfat defaults 0 2", deviceSpec, spec.MountPoint))
		case "swap":
			entries = append(entries, fmt.Sprintf("%v none swap sw 0 0", deviceSpec))
		default:
			entries = append(entries, fmt.Sprintf("%v %v ext4 defaults 0 2", deviceSpec, spec.MountPoint))
		}
	}
	entries = append(entries,
		"tmpfs /tmp tmpfs defaults,noatime,mode=1777 0 0",
		"tmpfs /var/tmp tmpfs defaults,noatime,mode=1777 0 0",
	)

	content := "# /etc/fstab: static file system information.\n" +
		"# <file system> <mount point> <type> <options> <dump> <pass>\n\n" +
		strings.Join(entries, "\n") + "\n"
	return os.WriteFile(path.Join(rootDir, "etc/fstab"), []byte(content), 0o644)
}

func (ip *ImageProvisioner) partitionUUID(ctx context.Context, devicePath string) string {
	stdout, _, err := ip.runner.Run(ctx, "blkid", "-s", "UUID", "-o", "value", devicePath)
	if err != nil {
		klog.V(4).InfoS("blkid failed", "device", devicePath, "err", err)
		return ""
	}
	return strings.TrimSpace(stdout)
}

func (ip *ImageProvisioner) installEssentials(ctx context.Context, rootDir string) error {
	if _, stderr, err := ip.runner.Run(ctx, "chroot", rootDir, "apt-get", "update"); err != nil {
		return fmt.Errorf("apt-get update failed; %w; %v", err, stderr)
	}
	args := append([]string{rootDir, "apt-get", "install", "-y"}, essentialPackages...)
	if _, stderr, err := ip.runner.Run(ctx, "chroot", args...); err != nil {
		return fmt.Errorf("package installation failed; %w; %v", err, stderr)
	}
	if _, _, err := ip.runner.Run(ctx, "chroot", rootDir, "apt-get", "clean"); err != nil {
		klog.V(3).InfoS("apt-get clean failed; continuing", "err", err)
	}
	return nil
}

func (ip *ImageProvisioner) writeDescriptor(p *plan.Plan, rootDir string, img *images.Image) error {
	descriptor := ModuleDescriptor{
		Version:    "1.0",
		ModuleName: moduleNameFromPlan(p),
		Created:    time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
		Device:     p.Device.Path(),
		Model:      p.Device.Model,
		Vendor:     p.Device.Vendor,
		Size:       p.Device.Size,
		Mode:       p.Mode,
		BaseImage:  img,
	}
	content, err := utils.ToJSON(descriptor)
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(rootDir, "opt/weirding/config/weirding.json"), []byte(content), 0o644)
}

// moduleNameFromPlan recovers the module name from the root partition
// label.
func moduleNameFromPlan(p *plan.Plan) string {
	if root := p.Root(); root != nil && strings.HasSuffix(root.Label, "_ROOT") {
		return strings.ToLower(strings.TrimSuffix(root.Label, "_ROOT"))
	}
	return "weirding"
}
