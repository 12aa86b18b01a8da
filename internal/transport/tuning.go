package transport

import "net"

// Socket and flow-control sizing for bulk transfers. The defaults quic-go
// ships with are sized for request/response traffic; moving whole trees
// wants larger windows.
const (
	udpBufferSize = 8 * 1024 * 1024

	connReceiveWindow   = 32 * 1024 * 1024
	initialConnWindow   = 2 * 1024 * 1024
	streamReceiveWindow = 16 * 1024 * 1024
	initialStreamWindow = 1 * 1024 * 1024
	maxIncomingStreams  = 16
)

// tuneUDP grows the socket buffers best effort. The kernel may clamp the
// request below udpBufferSize; transfers still work, just slower.
func tuneUDP(conn *net.UDPConn) {
	if conn == nil {
		return
	}
	_ = conn.SetReadBuffer(udpBufferSize)
	_ = conn.SetWriteBuffer(udpBufferSize)
}
