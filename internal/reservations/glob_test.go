package reservations

import "testing"

func TestGlobOverlap(t *testing.T) {
	cases := []struct {
		a, b     string
		expected bool
	}{
		{"src/main.go", "src/main.go", true},
		{"src/main.go", "src/other.go", false},
		{"src/*.go", "src/main.go", true},
		{"src/*.go", "src/sub/main.go", false},
		{"src/**", "src/sub/deep/file.go", true},
		{"**", "anything/at/all.txt", true},
		{"src/*", "lib/*", false},
		{"a/b/c", "a/b", false},
	}
	for _, c := range cases {
		if got := globOverlap(c.a, c.b); got != c.expected {
			t.Errorf("globOverlap(%q, %q) = %v, want %v", c.a, c.b, got, c.expected)
		}
	}
}

func TestMatchingActiveSetIdempotentRetry(t *testing.T) {
	active := []Reservation{
		{AgentName: "agent-a", PathPattern: "src/a.go", Exclusive: true},
		{AgentName: "agent-a", PathPattern: "src/b.go", Exclusive: true},
	}
	args := ReserveArgs{AgentName: "agent-a", Paths: []string{"src/a.go", "src/b.go"}, Exclusive: true}

	matched := matchingActiveSet(active, args)
	if len(matched) != 2 {
		t.Fatalf("expected both paths to match an existing identical reservation, got %d", len(matched))
	}
}

func TestMatchingActiveSetPartialMissNoMatch(t *testing.T) {
	active := []Reservation{
		{AgentName: "agent-a", PathPattern: "src/a.go", Exclusive: true},
	}
	args := ReserveArgs{AgentName: "agent-a", Paths: []string{"src/a.go", "src/b.go"}, Exclusive: true}

	if matched := matchingActiveSet(active, args); matched != nil {
		t.Fatalf("expected no match when not every path is already held, got %v", matched)
	}
}

func TestMatchingActiveSetDifferentExclusivityNoMatch(t *testing.T) {
	active := []Reservation{
		{AgentName: "agent-a", PathPattern: "src/a.go", Exclusive: true},
	}
	args := ReserveArgs{AgentName: "agent-a", Paths: []string{"src/a.go"}, Exclusive: false}

	if matched := matchingActiveSet(active, args); matched != nil {
		t.Fatal("expected no match when exclusivity differs from the held reservation")
	}
}
