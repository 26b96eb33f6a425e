package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/sysinfo"
)

const notAvailable = "N/A"

const bytesPerMiB = 1 << 20

type output struct {
	Host    *sysinfo.Report     `json:"host,omitempty"`
	Devices []*gpu.DeviceRecord `json:"devices"`
}

func renderJSON(w io.Writer, host *sysinfo.Report, devices []*gpu.DeviceRecord) error {
	data, err := json.MarshalIndent(output{Host: host, Devices: devices}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderText(w io.Writer, host *sysinfo.Report, devices []*gpu.DeviceRecord) error {
	if host != nil {
		fmt.Fprintf(w, "Host: %s (%s", host.Hostname, host.OS)
		if host.Platform != "" {
			fmt.Fprintf(w, " %s %s", host.Platform, host.PlatformVersion)
		}
		if host.Architecture != "" {
			fmt.Fprintf(w, ", %s", host.Architecture)
		}
		fmt.Fprintf(w, ", %s)\n", host.BitDepth)
		if host.KernelVersion != "" {
			fmt.Fprintf(w, "Kernel: %s\n", host.KernelVersion)
		}
		fmt.Fprintln(w)
	}

	for i, device := range devices {
		name := device.Name
		if name == "" {
			name = notAvailable
		}
		fmt.Fprintf(w, "GPU %d: %s (%s)\n", i, name, device.Vendor.String())
		fmt.Fprintf(w, "  Driver:      %s\n", formatString(device.DriverVersion))
		fmt.Fprintf(w, "  Temperature: %s\n", formatTemperature(device.Temperature))
		fmt.Fprintf(w, "  Utilization: %s\n", formatPercent(device.Utilization))
		fmt.Fprintf(w, "  Clock Speed: %s\n", formatClock(device.CoreClock, device.MaxClock))
		fmt.Fprintf(w, "  Power Usage: %s\n", formatPower(device.PowerUsage, device.PowerLimit))
		fmt.Fprintf(w, "  Memory:      %s\n", formatMemory(device.MemoryUsed, device.MemoryTotal))
		fmt.Fprintf(w, "  Active:      %s\n", formatBool(device.Active))
	}
	return nil
}

func formatString(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTemperature(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return formatFloat(*v) + "°C"
}

func formatPercent(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return formatFloat(*v) + "%"
}

// formatClock renders current against maximum, "1800/2400 MHz"
func formatClock(current, max *uint64) string {
	switch {
	case current == nil:
		return notAvailable
	case max == nil:
		return fmt.Sprintf("%d MHz", *current)
	default:
		return fmt.Sprintf("%d/%d MHz", *current, *max)
	}
}

// formatPower renders usage against the limit, "285.50/339 W"
func formatPower(usage, limit *float64) string {
	switch {
	case usage == nil:
		return notAvailable
	case limit == nil:
		return fmt.Sprintf("%.2f W", *usage)
	default:
		return fmt.Sprintf("%.2f/%s W", *usage, formatFloat(*limit))
	}
}

func formatMemory(used, total *uint64) string {
	switch {
	case used == nil && total == nil:
		return notAvailable
	case used == nil:
		return fmt.Sprintf("?/%d MiB", *total/bytesPerMiB)
	case total == nil:
		return fmt.Sprintf("%d MiB", *used/bytesPerMiB)
	default:
		return fmt.Sprintf("%d/%d MiB", *used/bytesPerMiB, *total/bytesPerMiB)
	}
}

func formatBool(v *bool) string {
	if v == nil {
		return notAvailable
	}
	if *v {
		return "yes"
	}
	return "no"
}
