package nat

import nftlib "github.com/google/nftables"

// Probe reports whether the running kernel has usable nf_tables support.
type Probe interface {
	Supports() (bool, error)
}

// DefaultProbe talks to the kernel via netlink: opening a connection
// and listing tables is the cheapest request that actually exercises
// the nf_tables subsystem end to end.
type DefaultProbe struct{}

func (DefaultProbe) Supports() (bool, error) {
	c, err := nftlib.New()
	if err != nil {
		return false, err
	}
	defer func() { _ = c.CloseLasting() }() // safe no-op for non-lasting conns

	if _, err := c.ListTables(); err != nil {
		return false, err
	}
	return true, nil
}
