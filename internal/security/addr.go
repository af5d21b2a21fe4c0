package security

import (
	"net"
	"strings"
)

// IsLoopbackAddr reports whether a host:port listen address binds only to the
// loopback interface. An empty host binds every interface and is not loopback.
func IsLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
