// Package netutil helps pick a listenable bind address.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// SelectBindAddr returns the preferred address when it is free. When it is
// busy and autoFallback is set, the candidates are probed in order instead.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		free, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if free {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		free, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if free {
			return addr, nil
		}
	}

	return "", errors.New("no available server bind addresses")
}

// IsAddrAvailable reports whether the address can currently be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
