//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
//
// Stub implementation for platforms other than Linux. The server itself
// only builds on Linux (epoll), but this keeps `go vet ./...` happy on a
// developer's non-Linux workstation.

package affinity

import "errors"

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
