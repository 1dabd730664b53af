package lib

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultProbeTimeout bounds CheckConnection when no timeout is configured
const DefaultProbeTimeout = 2 * time.Second

// CheckConnection reports whether a TCP connection to host:port can be opened.
// The connection is closed immediately; nothing is written to it.
func CheckConnection(host string, port int, timeout time.Duration) bool {
	if host == "" || port <= 0 || port > 65535 {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	conn, err := fasthttp.DialTimeout(net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		if logger != nil {
			logger.Debug(fmt.Sprintf("connection check to %s:%d failed: %v", host, port, err))
		}
		return false
	}
	conn.Close()
	return true
}
