// Package sysinfo reports basic facts about the host the GPU queries run
// on: operating system, kernel, architecture, and memory.
package sysinfo

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
)

const ErrCollectFailed = errors.ErrorCode("sysinfo_collect_failed")

// BitDepth is the word size of the running kernel
type BitDepth uint8

const (
	BitDepthUnknown BitDepth = iota
	BitDepth32
	BitDepth64
)

func (b BitDepth) String() string {
	switch b {
	case BitDepth32:
		return "32-bit"
	case BitDepth64:
		return "64-bit"
	default:
		return "Unknown"
	}
}

func (b BitDepth) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Report is a point-in-time description of the host
type Report struct {
	Hostname        string   `json:"hostname"`
	OS              string   `json:"os"`
	Platform        string   `json:"platform,omitempty"`
	PlatformVersion string   `json:"platform_version,omitempty"`
	KernelVersion   string   `json:"kernel_version,omitempty"`
	Architecture    string   `json:"architecture,omitempty"`
	BitDepth        BitDepth `json:"bit_depth"`
	TotalMemory     uint64   `json:"total_memory_bytes,omitempty"`
}

// Collect gathers the host report. Memory is best-effort: a failing
// memory probe leaves the field zero rather than failing the report.
func Collect(ctx context.Context) (*Report, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		errFactory := errors.New()
		return nil, errFactory.Wrap(ErrCollectFailed, err)
	}

	report := &Report{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Architecture:    info.KernelArch,
		BitDepth:        bitDepthFromArch(info.KernelArch),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report.TotalMemory = vm.Total
	}
	return report, nil
}

func bitDepthFromArch(arch string) BitDepth {
	switch strings.ToLower(arch) {
	case "x86_64", "amd64", "arm64", "aarch64", "ppc64", "ppc64le", "riscv64", "s390x":
		return BitDepth64
	case "i386", "i486", "i586", "i686", "x86", "arm", "armv7l", "armv6l":
		return BitDepth32
	default:
		return BitDepthUnknown
	}
}
