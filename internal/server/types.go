package server

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

// isExpectedCloseError reports errors that only mean the peer or the hub already closed the socket.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return strings.Contains(err.Error(), "broken pipe")
}
