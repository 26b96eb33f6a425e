package amdgpu

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func readTrimmedFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func readUintFile(path string) (uint64, bool) {
	s, ok := readTrimmedFile(path)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readHexFile(path string) (uint64, bool) {
	s, ok := readTrimmedFile(path)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func hwmonDirs(devicePath string) []string {
	entries, err := os.ReadDir(filepath.Join(devicePath, "hwmon"))
	if err != nil {
		return nil
	}
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		dirs = append(dirs, filepath.Join(devicePath, "hwmon", entry.Name()))
	}
	return dirs
}

// readUintFromHwmon scans every hwmon subdevice for file and returns the
// first readable value
func readUintFromHwmon(devicePath, file string) (uint64, bool) {
	for _, hwmon := range hwmonDirs(devicePath) {
		if v, ok := readUintFile(filepath.Join(hwmon, file)); ok {
			return v, true
		}
	}
	return 0, false
}

// parseDPMLevel splits a pp_dpm_sclk/mclk line like "1: 600Mhz *" into
// its frequency and whether it is the active level.
func parseDPMLevel(line string) (mhz uint64, active, ok bool) {
	_, rest, found := strings.Cut(line, ":")
	if !found {
		return 0, false, false
	}
	active = strings.Contains(rest, "*")
	freq := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "*"))
	freq = strings.TrimSuffix(strings.TrimSpace(freq), "Mhz")
	v, err := strconv.ParseUint(freq, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return v, active, true
}

// activeDPMClock returns the frequency of the level the power manager
// currently runs at
func activeDPMClock(path string) (uint64, bool) {
	content, ok := readTrimmedFile(path)
	if !ok {
		return 0, false
	}
	for _, line := range strings.Split(content, "\n") {
		if mhz, active, ok := parseDPMLevel(line); ok && active {
			return mhz, true
		}
	}
	return 0, false
}

// maxDPMClock returns the highest frequency any level advertises
func maxDPMClock(path string) (uint64, bool) {
	content, ok := readTrimmedFile(path)
	if !ok {
		return 0, false
	}
	var best uint64
	var found bool
	for _, line := range strings.Split(content, "\n") {
		if mhz, _, ok := parseDPMLevel(line); ok && mhz > best {
			best = mhz
			found = true
		}
	}
	return best, found
}
