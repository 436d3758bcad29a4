package tcp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceSendReceiveRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sd := NewDevice(server)
	cd := NewDevice(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.True(t, sd.Send([]byte("hello")))
	}()

	buf := make([]byte, 5)
	n, ok := cd.Receive(buf)
	require.True(t, ok)
	require.Equal(t, "hello", string(buf[:n]))
	<-done
}

func TestDeviceReceiveFalseOnClose(t *testing.T) {
	server, client := net.Pipe()
	client.Close()
	defer server.Close()

	d := NewDevice(server)
	buf := make([]byte, 4)
	_, ok := d.Receive(buf)
	require.False(t, ok)
}
