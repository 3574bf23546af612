// Package vm boots built images under a virtual machine monitor and watches
// the serial console for boot milestones and functional test results.
package vm

import (
	"fmt"
	"os/exec"

	"lukechampine.com/blake3"

	"github.com/redoxforge/redoxforge/internal/settings"
)

// Backend selects the virtual machine monitor.
type Backend string

const (
	BackendQEMU            Backend = "qemu"
	BackendCloudHypervisor Backend = "cloud-hypervisor"
)

// Options describe one VM launch.
type Options struct {
	Backend   Backend
	Image     string
	SerialLog string
	Graphics  bool
	Settings  settings.VM
	// Hostname seeds the deterministic guest MAC.
	Hostname string
}

// GuestMAC derives a stable locally-administered MAC address from a name,
// so repeated boots of the same system keep their DHCP lease.
func GuestMAC(name string) string {
	sum := blake3.Sum256([]byte(name))
	return fmt.Sprintf("52:54:00:%02x:%02x:%02x", sum[0], sum[1], sum[2])
}

// Command builds the VMM invocation. The serial console always goes to the
// log file: the watcher reads it there.
func Command(opts Options) (*exec.Cmd, error) {
	switch opts.Backend {
	case BackendQEMU:
		return exec.Command(opts.Settings.Qemu, qemuArgs(opts)...), nil
	case BackendCloudHypervisor:
		return exec.Command(opts.Settings.CloudHypervisor, cloudHypervisorArgs(opts)...), nil
	default:
		return nil, fmt.Errorf("unknown VM backend %q", opts.Backend)
	}
}

func qemuArgs(opts Options) []string {
	args := []string{
		"-machine", "q35",
		"-cpu", "max",
		"-smp", "2",
		"-m", opts.Settings.Memory,
		"-bios", opts.Settings.OVMF,
		"-drive", fmt.Sprintf("file=%s,format=raw,if=virtio", opts.Image),
		"-netdev", "user,id=net0",
		"-device", fmt.Sprintf("virtio-net-pci,netdev=net0,mac=%s", GuestMAC(opts.Hostname)),
		"-serial", "file:" + opts.SerialLog,
	}
	if !opts.Graphics {
		args = append(args, "-display", "none")
	}
	return args
}

func cloudHypervisorArgs(opts Options) []string {
	args := []string{
		"--firmware", opts.Settings.OVMF,
		"--cpus", "boot=2",
		"--memory", "size=" + opts.Settings.Memory,
		"--disk", "path=" + opts.Image,
		"--net", "mac=" + GuestMAC(opts.Hostname),
		"--serial", "file=" + opts.SerialLog,
		"--console", "off",
	}
	return args
}
