package protocol

import "testing"

func TestAddressLocalAndSwarm(t *testing.T) {
	a := NewAddress(KindAgent, "planner@remote-swarm")
	if got := a.Local(); got != "planner" {
		t.Fatalf("Local() = %q, want %q", got, "planner")
	}
	if got := a.Swarm(); got != "remote-swarm" {
		t.Fatalf("Swarm() = %q, want %q", got, "remote-swarm")
	}

	bare := NewAddress(KindAgent, "planner")
	if got := bare.Local(); got != "planner" {
		t.Fatalf("Local() on bare address = %q, want %q", got, "planner")
	}
	if got := bare.Swarm(); got != "" {
		t.Fatalf("Swarm() on bare address = %q, want empty", got)
	}
}

func TestAddressIsRemote(t *testing.T) {
	cases := []struct {
		name       string
		addr       Address
		localSwarm string
		want       bool
	}{
		{"bare name is not remote", NewAddress(KindAgent, "planner"), "home", false},
		{"same swarm is not remote", NewAddress(KindAgent, "planner@home"), "home", false},
		{"different swarm is remote", NewAddress(KindAgent, "planner@away"), "home", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.addr.IsRemote(tc.localSwarm); got != tc.want {
				t.Fatalf("IsRemote() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAddressWithSwarm(t *testing.T) {
	a := NewAddress(KindAgent, "planner")
	got := a.WithSwarm("home")
	want := Address{Kind: KindAgent, Name: "planner@home"}
	if got != want {
		t.Fatalf("WithSwarm() = %+v, want %+v", got, want)
	}

	// Re-homing an already-suffixed address replaces the suffix rather than
	// appending a second one.
	remote := NewAddress(KindAgent, "planner@away")
	got = remote.WithSwarm("home")
	if got.Name != "planner@home" {
		t.Fatalf("WithSwarm() on suffixed address = %q, want %q", got.Name, "planner@home")
	}
}

func TestAddressIsAll(t *testing.T) {
	if !NewAddress(KindAgent, All).IsAll() {
		t.Fatal("expected agent:all to be IsAll()")
	}
	if NewAddress(KindUser, All).IsAll() {
		t.Fatal("expected user:all (wrong kind) to not be IsAll()")
	}
	if NewAddress(KindAgent, "planner").IsAll() {
		t.Fatal("expected agent:planner to not be IsAll()")
	}
}
