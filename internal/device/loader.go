package device

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// kasaNamePrefix marks a Kasa plug in the legacy config file.
const kasaNamePrefix = "$"

// fileFormat is the YAML device file layout:
//
//	devices:
//	  - name: Porch
//	    address: 10.0.0.12
//	    transport: telnet
type fileFormat struct {
	Devices []Device `yaml:"devices"`
}

// LoadFile reads a YAML device file. Every device is defaulted and validated.
func LoadFile(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing device file %s: %w", path, err)
	}

	devices := make([]Device, 0, len(f.Devices))
	for i := range f.Devices {
		d := f.Devices[i]
		d.applyDefaults()
		if err := ValidateDevice(&d); err != nil {
			return nil, fmt.Errorf("device %d (%s): %w", i+1, d.ID, err)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// LoadLegacyFile reads the older "name - ip" text format.
func LoadLegacyFile(path string, logger Logger) ([]Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy device file: %w", err)
	}
	defer f.Close()

	return ParseLegacy(f, logger)
}

// ParseLegacy parses one light per line as "name - ip". A name starting
// with "$" is a Kasa plug; everything else is a telnet light. Blank
// lines, lines without the separator and lines with an invalid IP are
// logged and skipped.
func ParseLegacy(r io.Reader, logger Logger) ([]Device, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var devices []Device
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, ip, ok := strings.Cut(line, " - ")
		if !ok {
			logger.Warn("skipping malformed device line", "line", lineNo)
			continue
		}
		name = strings.TrimSpace(name)
		ip = strings.TrimSpace(ip)

		if err := ValidateIP(ip); err != nil {
			logger.Warn("skipping device with invalid ip", "line", lineNo, "name", name, "ip", ip)
			continue
		}

		d := Device{Name: name, Address: ip, Transport: TransportTelnet}
		if strings.HasPrefix(name, kasaNamePrefix) {
			d.Transport = TransportKasa
			d.Name = strings.TrimSpace(strings.TrimPrefix(name, kasaNamePrefix))
		}
		d.applyDefaults()
		if err := ValidateDevice(&d); err != nil {
			logger.Warn("skipping invalid device", "line", lineNo, "error", err)
			continue
		}
		devices = append(devices, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading legacy device file: %w", err)
	}
	return devices, nil
}

// LoadAll reads the YAML file and the legacy file (either may be empty)
// and concatenates them, YAML first.
func LoadAll(file, legacyFile string, logger Logger) ([]Device, error) {
	var devices []Device

	if file != "" {
		ds, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		devices = append(devices, ds...)
	}
	if legacyFile != "" {
		ds, err := LoadLegacyFile(legacyFile, logger)
		if err != nil {
			return nil, err
		}
		devices = append(devices, ds...)
	}
	return devices, nil
}
