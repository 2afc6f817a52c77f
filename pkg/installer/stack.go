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

	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"github.com/weirdinghost/weirdingctl/pkg/utils"
	"k8s.io/klog/v2"
)

const defaultUser = "weirding"

// ollamaUnit serves models straight off the module's data partition.
const ollamaUnit = `[Unit]
Description=Ollama Model Server
After=network-online.target

[Service]
ExecStart=/usr/local/bin/ollama serve
User=ollama
Group=ollama
Restart=always
RestartSec=3
Environment="OLLAMA_MODELS=` + consts.ModelsMountPoint + `/ollama"

[Install]
WantedBy=multi-user.target
`

const firstBootScript = `#!/bin/bash
# First boot setup for this module.

chage -d 0 ` + defaultUser + `
ssh-keygen -A
mkdir -p ` + consts.ModelsMountPoint + `/{ollama,huggingface,custom}
chown -R ` + defaultUser + `:` + defaultUser + ` ` + consts.ModelsMountPoint + `
touch /opt/weirding/.first_boot_complete
`

const firstBootUnit = `[Unit]
Description=Weirding First Boot Setup
After=multi-user.target
ConditionPathExists=!/opt/weirding/.first_boot_complete

[Service]
Type=oneshot
ExecStart=/opt/weirding/scripts/first_boot.sh
RemainAfterExit=yes

[Install]
WantedBy=multi-user.target
`

// dockerDaemonConfig keeps container state on the data partition so
// image and model pulls never fill the root filesystem.
type dockerDaemonConfig struct {
	DataRoot string            `json:"data-root"`
	LogOpts  map[string]string `json:"log-opts,omitempty"`
}

// StackInstaller layers the serving stack onto a provisioned system:
// the default user, the container runtime configuration and the model
// server unit. Everything runs inside the mounted staging root.
type StackInstaller struct {
	runner sys.Runner
}

// NewStackInstaller returns a stack installer using the given runner.
func NewStackInstaller(runner sys.Runner) *StackInstaller {
	return &StackInstaller{runner: runner}
}

// Install provisions the stack. The staging area must be mounted and
// the base system in place.
func (si *StackInstaller) Install(ctx context.Context, p *plan.Plan, staging *Staging, progress Progress) error {
	report := func(message string) {
		klog.V(3).InfoS("stack", "device", p.Device.Path(), "message", message)
		if progress != nil {
			progress(message)
		}
	}
	rootDir := staging.RootDir()

	report("Creating default user...")
	if err := si.createUser(ctx, rootDir); err != nil {
		return err
	}

	report("Configuring container runtime...")
	if err := si.configureContainerRuntime(ctx, rootDir); err != nil {
		return err
	}

	report("Installing model server unit...")
	if err := si.installModelServer(ctx, rootDir); err != nil {
		return err
	}

	report("Installing first-boot setup...")
	return si.installFirstBoot(ctx, rootDir)
}

func (si *StackInstaller) createUser(ctx context.Context, rootDir string) error {
	if _, stderr, err := si.runner.Run(ctx, "chroot", rootDir, "useradd", "-m", "-s", "/bin/bash", defaultUser); err != nil {
		return fmt.Errorf("unable to create user %v; %w; %v", defaultUser, err, stderr)
	}
	if _, _, err := si.runner.Run(ctx, "chroot", rootDir, "usermod", "-aG", "sudo,docker", defaultUser); err != nil {
		klog.V(3).InfoS("unable to add user groups; continuing", "user", defaultUser, "err", err)
	}
	// Placeholder credentials; the first-boot unit forces a change.
	if _, stderr, err := si.runner.Run(ctx, "chroot", rootDir, "bash", "-c",
		fmt.Sprintf("echo %q | chpasswd", defaultUser+":"+defaultUser)); err != nil {
		return fmt.Errorf("unable to set initial password; %w; %v", err, stderr)
	}
	return nil
}

func (si *StackInstaller) configureContainerRuntime(ctx context.Context, rootDir string) error {
	config := dockerDaemonConfig{
		DataRoot: consts.ModelsMountPoint + "/docker",
		LogOpts:  map[string]string{"max-size": "10m", "max-file": "3"},
	}
	content, err := utils.ToJSON(config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path.Join(rootDir, "etc/docker"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path.Join(rootDir, "etc/docker/daemon.json"), []byte(content), 0o644); err != nil {
		return err
	}
	if err := os.MkdirAll(path.Join(rootDir, consts.ModelsMountPoint[1:], "docker"), 0o755); err != nil {
		return err
	}

	if _, _, err := si.runner.Run(ctx, "chroot", rootDir, "systemctl", "enable", "docker"); err != nil {
		klog.V(3).InfoS("unable to enable docker; continuing", "err", err)
	}
	return nil
}

func (si *StackInstaller) installModelServer(ctx context.Context, rootDir string) error {
	if err := os.MkdirAll(path.Join(rootDir, "etc/systemd/system"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path.Join(rootDir, "etc/systemd/system/ollama.service"), []byte(ollamaUnit), 0o644); err != nil {
		return err
	}
	if _, _, err := si.runner.Run(ctx, "chroot", rootDir, "groupadd", "-f", "ollama"); err != nil {
		klog.V(3).InfoS("groupadd failed; continuing", "err", err)
	}
	if _, _, err := si.runner.Run(ctx, "chroot", rootDir, "useradd", "-r", "-s", "/bin/false",
		"-g", "ollama", "-d", consts.ModelsMountPoint+"/ollama", "ollama"); err != nil {
		klog.V(3).InfoS("ollama user exists; continuing", "err", err)
	}
	if _, _, err := si.runner.Run(ctx, "chroot", rootDir, "systemctl", "enable", "ollama"); err != nil {
		klog.V(3).InfoS("unable to enable ollama; continuing", "err", err)
	}
	return nil
}

func (si *StackInstaller) installFirstBoot(ctx context.Context, rootDir string) error {
	scriptPath := path.Join(rootDir, "opt/weirding/scripts/first_boot.sh")
	if err := os.MkdirAll(path.Dir(scriptPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(scriptPath, []byte(firstBootScript), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path.Join(rootDir, "etc/systemd/system/weirding-first-boot.service"), []byte(firstBootUnit), 0o644); err != nil {
		return err
	}
	if _, stderr, err := si.runner.Run(ctx, "chroot", rootDir, "systemctl", "enable", "weirding-first-boot.service"); err != nil {
		return fmt.Errorf("unable to enable first-boot unit; %w; %v", err, stderr)
	}
	return nil
}
