package fetch

import (
	"net"
	"testing"
)

func TestFTPClient_AbortClosesConnections(t *testing.T) {
	client := &ftpClient{}
	control, controlPeer := net.Pipe()
	data, dataPeer := net.Pipe()
	defer controlPeer.Close()
	defer dataPeer.Close()
	client.track(control)
	client.track(data)

	if err := client.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	for _, c := range []net.Conn{control, data} {
		if _, err := c.Read(make([]byte, 1)); err == nil {
			t.Error("read on an aborted connection succeeded")
		}
	}

	// A second abort, e.g. after the transfer already failed, is harmless.
	if err := client.Abort(); err != nil {
		t.Errorf("second Abort failed: %v", err)
	}
}
