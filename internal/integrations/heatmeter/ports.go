package heatmeter

import (
	"os"
	"path/filepath"

	"go.bug.st/serial/enumerator"
)

// ManualPath is the port choice that asks for a device path instead.
const ManualPath = "Enter Manually"

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Device       string
	Product      string
	SerialNumber string
	Manufacturer string
	IsUSB        bool
}

// Label returns the text shown for p in the port picker:
// "<device> - <product>, s/n: <serial> - <manufacturer>".
func (p PortInfo) Label() string {
	product := p.Product
	if product == "" {
		product = "n/a"
	}
	serial := p.SerialNumber
	if serial == "" {
		serial = "n/a"
	}
	label := p.Device + " - " + product + ", s/n: " + serial
	if p.Manufacturer != "" {
		label += " - " + p.Manufacturer
	}
	return label
}

// PortLister lists the serial ports of the host.
type PortLister interface {
	Ports() ([]PortInfo, error)
}

// PortListerFunc adapts a function to PortLister.
type PortListerFunc func() ([]PortInfo, error)

// Ports implements PortLister.
func (f PortListerFunc) Ports() ([]PortInfo, error) { return f() }

// SystemPorts lists ports through the operating system.
type SystemPorts struct{}

// Ports implements PortLister.
func (SystemPorts) Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		p := PortInfo{Device: d.Name, IsUSB: d.IsUSB}
		if d.IsUSB {
			p.Product = d.Product
			p.SerialNumber = d.SerialNumber
			// The enumerator has no manufacturer string; the vendor ID names it.
			if d.VID != "" {
				p.Manufacturer = "VID " + d.VID
			}
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// SerialByID returns the stable by-id link in dir that points at path.
// path is returned unchanged when dir does not exist or nothing links to it.
func SerialByID(path, dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return path
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		target = path
	}
	for _, e := range entries {
		link := filepath.Join(dir, e.Name())
		resolved, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		if resolved == target {
			return link
		}
	}
	return path
}
