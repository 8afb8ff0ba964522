// Package protocol defines the MAIL wire types: addresses, the envelope sum
// type, the canonical XML rendering used as agent input, and the error
// taxonomy that every other package reports through.
package protocol

import "strings"

// Kind discriminates the role an Address plays: the sending/receiving
// participant's class, not the envelope kind.
type Kind string

const (
	KindAgent  Kind = "agent"
	KindUser   Kind = "user"
	KindSystem Kind = "system"
	KindAdmin  Kind = "admin"
)

// All is the reserved agent name denoting fanout to every local agent. No
// real agent may register under this name (enforced at swarm construction).
const All = "all"

// Address identifies a MAIL participant. Name may be a bare local name or
// "local@swarm" for a remote agent.
type Address struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

// NewAddress builds an Address, leaving Name exactly as given (local or
// "name@swarm" form).
func NewAddress(kind Kind, name string) Address {
	return Address{Kind: kind, Name: name}
}

// Local returns the local-name portion of Name, stripping any "@swarm"
// suffix. For a purely local address it returns Name unchanged.
func (a Address) Local() string {
	if idx := strings.LastIndexByte(a.Name, '@'); idx >= 0 {
		return a.Name[:idx]
	}
	return a.Name
}

// Swarm returns the swarm suffix of Name, or "" if Name carries none.
func (a Address) Swarm() string {
	if idx := strings.LastIndexByte(a.Name, '@'); idx >= 0 {
		return a.Name[idx+1:]
	}
	return ""
}

// IsRemote reports whether Name carries an "@swarm" suffix that differs from
// localSwarm. A bare name, or a name suffixed with the local swarm itself,
// is not remote.
func (a Address) IsRemote(localSwarm string) bool {
	swarm := a.Swarm()
	return swarm != "" && swarm != localSwarm
}

// WithSwarm returns a copy of the address with Name rewritten to
// "local@swarm", used by the router when it rewrites a sender address before
// wrapping an envelope for interswarm transport.
func (a Address) WithSwarm(swarm string) Address {
	return Address{Kind: a.Kind, Name: a.Local() + "@" + swarm}
}

// IsAll reports whether this address is the reserved agent broadcast target.
func (a Address) IsAll() bool {
	return a.Kind == KindAgent && a.Name == All
}
