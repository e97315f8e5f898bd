package socket

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestClientServerRoundTrip(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	server := &udpSocket{conn: serverConn}
	defer server.Close()

	client, err := ListenClient()
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer client.Close()

	serverAddr := netip.MustParseAddrPort(serverConn.LocalAddr().String())
	if err := client.Send([]byte("hello"), serverAddr); err != nil {
		t.Fatalf("client send: %v", err)
	}

	server.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, from, err := server.Recv(buf)
	if err != nil {
		t.Fatalf("server recv: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("unexpected payload: %q", buf[:n])
	}

	if err := server.Send([]byte("world"), from); err != nil {
		t.Fatalf("server send: %v", err)
	}
}
