package desktopclient

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidBeacon(t *testing.T) {
	tests := []struct {
		name   string
		beacon discoveryBeacon
		marker string
		want   bool
	}{
		{
			name:   "valid",
			beacon: discoveryBeacon{Active: true, InstanceID: "abc", WindowTitle: "VSeeFace 1.0"},
			marker: "VSeeFace",
			want:   true,
		},
		{
			name:   "inactive",
			beacon: discoveryBeacon{Active: false, InstanceID: "abc", WindowTitle: "VSeeFace 1.0"},
			marker: "VSeeFace",
			want:   false,
		},
		{
			name:   "missing instance id",
			beacon: discoveryBeacon{Active: true, InstanceID: "", WindowTitle: "VSeeFace 1.0"},
			marker: "VSeeFace",
			want:   false,
		},
		{
			name:   "marker mismatch",
			beacon: discoveryBeacon{Active: true, InstanceID: "abc", WindowTitle: "SomeOtherApp"},
			marker: "VSeeFace",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidBeacon(tt.beacon, tt.marker))
		})
	}
}

func TestDiscover_TimesOutWithNoBeacon(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok := discover(ctx, 0, "VSeeFace", 50*time.Millisecond)
	assert.False(t, ok)
}

func TestDiscover_AcceptsValidBeacon(t *testing.T) {
	probe, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	port := probe.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, probe.Close())

	beacon := discoveryBeacon{Active: true, InstanceID: "xyz", WindowTitle: "VSeeFace 1.0", Port: 9000}
	payload, err := json.Marshal(beacon)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
		sender, _ := net.DialUDP("udp", nil, dst)
		defer sender.Close()
		_, _ = sender.Write(payload)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	gotPort, ok := discover(ctx, port, "VSeeFace", 500*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 9000, gotPort)
}

func TestMinDuration(t *testing.T) {
	assert.Equal(t, time.Second, minDuration(time.Second, 2*time.Second))
	assert.Equal(t, time.Second, minDuration(2*time.Second, time.Second))
}
