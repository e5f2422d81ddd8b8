// Package device resolves the compute device inference runs on. Resolution
// happens once at start-up; the result is immutable and never re-queried per
// request.
package device

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Kind is the class of compute hardware.
type Kind string

const (
	// Accelerator is a GPU-class device, reported as "cuda".
	Accelerator Kind = "cuda"

	// CPU is the general-purpose processor fallback.
	CPU Kind = "cpu"
)

// Preference values accepted by Resolve.
const (
	PreferAuto = "auto"
	PreferGPU  = "gpu"
	PreferCUDA = "cuda"
	PreferCPU  = "cpu"
)

// Device is a resolved compute device.
type Device struct {
	Kind Kind

	// Parallelism is how many inference calls the device runs at once
	// without oversubscription.
	Parallelism int
}

// String is the identifier reported on /health.
func (d Device) String() string {
	return string(d.Kind)
}

// Prober reports whether an accelerator is present.
type Prober interface {
	HasAccelerator() bool
}

// ProberFunc adapts a function into a Prober.
type ProberFunc func() bool

func (f ProberFunc) HasAccelerator() bool { return f() }

// Resolve turns a configured preference into a Device. A parallelism of zero
// derives the default for the resolved kind.
func Resolve(preference string, parallelism uint, probe Prober) (Device, error) {
	var kind Kind

	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "", PreferAuto:
		kind = CPU
		if probe != nil && probe.HasAccelerator() {
			kind = Accelerator
		}
	case PreferGPU, PreferCUDA:
		kind = Accelerator
	case PreferCPU:
		kind = CPU
	default:
		return Device{}, fmt.Errorf("unknown device preference %q (expected auto, cuda or cpu)", preference)
	}

	return New(kind, parallelism), nil
}

// New builds a Device of the given kind, deriving parallelism when zero.
func New(kind Kind, parallelism uint) Device {
	p := int(parallelism)
	if p <= 0 {
		p = defaultParallelism(kind)
	}
	return Device{Kind: kind, Parallelism: p}
}

// FromBackend maps a backend-reported device name onto a Kind.
func FromBackend(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cuda", "gpu", "rocm", "metal", "mps":
		return Accelerator, true
	case "cpu":
		return CPU, true
	default:
		return "", false
	}
}

func defaultParallelism(kind Kind) int {
	if kind == Accelerator {
		// A single accelerator serializes kernels anyway; more in-flight
		// calls only add memory pressure.
		return 1
	}
	return runtime.NumCPU()
}

// HostProber probes the local machine for an NVIDIA accelerator.
type HostProber struct {
	// DriverDir is the NVIDIA driver's GPU listing. Defaults to /proc/driver/nvidia/gpus.
	DriverDir string
}

// HasAccelerator reports true when CUDA_VISIBLE_DEVICES names a device or the
// driver lists at least one GPU.
func (p HostProber) HasAccelerator() bool {
	if visible, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		visible = strings.TrimSpace(visible)
		return visible != "" && visible != "-1" && visible != "NoDevFiles"
	}

	dir := p.DriverDir
	if dir == "" {
		dir = "/proc/driver/nvidia/gpus"
	}

	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
