package base

import (
	"context"
	"fmt"
	"net"

	"github.com/mavkit/mavconn/transport"
)

// Endpoint is a resolved network address plus port. Immutable once
// constructed; produced exactly once, at channel-open time.
type Endpoint struct {
	IP   net.IP
	Port int
	Zone string
}

// TCPAddr returns the endpoint as a *net.TCPAddr.
func (e *Endpoint) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: e.IP, Port: e.Port, Zone: e.Zone}
}

// UDPAddr returns the endpoint as a *net.UDPAddr.
func (e *Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: e.Port, Zone: e.Zone}
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// ResolveEndpoint resolves host to an address, takes the first result and
// overrides its port with the requested port. A resolver error or an empty
// result set is fatal to channel construction (callers do not retry).
func ResolveEndpoint(host string, port uint16) (*Endpoint, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, transport.ErrNoAddresses
	}

	ep := &Endpoint{
		IP:   addrs[0].IP,
		Port: int(port),
		Zone: addrs[0].Zone,
	}
	Logger.Debugf("resolve: host %s resolved as %s", host, ep)
	return ep, nil
}
