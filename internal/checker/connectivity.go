package checker

import (
	"net"
)

// Connectivity reports whether the client believes it has a network.
type Connectivity interface {
	Online() bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func() bool

func (f ConnectivityFunc) Online() bool { return f() }

var (
	AlwaysOnline  Connectivity = ConnectivityFunc(func() bool { return true })
	AlwaysOffline Connectivity = ConnectivityFunc(func() bool { return false })
)

// InterfaceProbe reports online when at least one non-loopback interface is
// up and carries an address. Like a browser's online flag it says nothing
// about reachability of the backend.
type InterfaceProbe struct {
	// Interfaces defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)
	// Addrs defaults to (*net.Interface).Addrs.
	Addrs func(net.Interface) ([]net.Addr, error)
}

func (p InterfaceProbe) Online() bool {
	list := p.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	addrs := p.Addrs
	if addrs == nil {
		addrs = func(i net.Interface) ([]net.Addr, error) { return i.Addrs() }
	}

	ifaces, err := list()
	if err != nil {
		// Unknown; do not mask the real error with the offline message.
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if a, err := addrs(iface); err == nil && len(a) > 0 {
			return true
		}
	}
	return false
}
