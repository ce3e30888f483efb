package paxos

import "testing"

func TestCalculateMajority(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 9: 5, 10: 6}
	for quorum, want := range cases {
		if got := CalculateMajority(quorum); got != want {
			t.Errorf("CalculateMajority(%d) = %d, want %d", quorum, got, want)
		}
	}
}

func TestFillDefaults(t *testing.T) {
	c := Config{Nodes: []string{"a", "b", "c"}}
	c.FillDefaults()
	if c.QuorumSize != 3 {
		t.Errorf("QuorumSize = %d, want 3", c.QuorumSize)
	}
	if c.StorageBackend != "memory" {
		t.Errorf("StorageBackend = %q, want memory", c.StorageBackend)
	}
	if c.Port != 8080 {
		t.Errorf("Port = %d, want 8080", c.Port)
	}
	if c.UID == "" {
		t.Error("UID left empty, want a generated value")
	}
}

func TestFillDefaultsGeneratesDistinctUIDs(t *testing.T) {
	var a, b Config
	a.FillDefaults()
	b.FillDefaults()
	if a.UID == "" || b.UID == "" {
		t.Fatal("expected both configs to receive a generated UID")
	}
	if a.UID == b.UID {
		t.Fatalf("expected distinct generated UIDs, got %q for both", a.UID)
	}
}

func TestFillDefaultsRespectsExplicitValues(t *testing.T) {
	c := Config{UID: "node-a", Nodes: []string{"a", "b"}, QuorumSize: 5, StorageBackend: "sqlite", Port: 9090}
	c.FillDefaults()
	if c.UID != "node-a" {
		t.Errorf("UID = %q, want node-a (explicit value preserved)", c.UID)
	}
	if c.QuorumSize != 5 {
		t.Errorf("QuorumSize = %d, want 5 (explicit value preserved)", c.QuorumSize)
	}
	if c.StorageBackend != "sqlite" {
		t.Errorf("StorageBackend = %q, want sqlite (explicit value preserved)", c.StorageBackend)
	}
	if c.Port != 9090 {
		t.Errorf("Port = %d, want 9090 (explicit value preserved)", c.Port)
	}
}
