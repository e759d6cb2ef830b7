package desktopclient

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"
)

const defaultDiscoveryPort = 47779

// discover listens for a broadcast beacon for up to timeout. It returns the
// discovered port on a valid beacon (active, non-empty instance id, window
// title containing productMarker); otherwise it returns ok=false once the
// timeout elapses, and the caller falls back to the configured port.
func discover(ctx context.Context, discoveryPort int, productMarker string, timeout time.Duration) (port int, ok bool) {
	if discoveryPort == 0 {
		discoveryPort = defaultDiscoveryPort
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: discoveryPort})
	if err != nil {
		return 0, false
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, false
		}
		select {
		case <-ctx.Done():
			return 0, false
		default:
		}

		conn.SetReadDeadline(time.Now().Add(minDuration(remaining, 250*time.Millisecond)))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		var beacon discoveryBeacon
		if err := json.Unmarshal(buf[:n], &beacon); err != nil {
			continue
		}

		if isValidBeacon(beacon, productMarker) {
			return beacon.Port, true
		}
	}
}

func isValidBeacon(b discoveryBeacon, productMarker string) bool {
	return b.Active && b.InstanceID != "" && strings.Contains(b.WindowTitle, productMarker)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
