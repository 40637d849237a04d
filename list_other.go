//go:build !linux

package serial

import (
	"sort"

	bugst "go.bug.st/serial"
)

// ListPorts returns the ports reported by the OS, sorted.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}

func portExists(path string) bool {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return false
	}
	for _, p := range ports {
		if p == path {
			return true
		}
	}
	return false
}
