package identity_test

import (
	"regexp"
	"testing"

	"clipdex/internal/identity"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-5[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestAssignIDDeterministic(t *testing.T) {
	a := identity.AssignID("/src/clip.mp4")
	b := identity.AssignID("/src/clip.mp4")
	if a != b {
		t.Fatalf("same path produced %q and %q", a, b)
	}
}

func TestAssignIDDistinctPerPath(t *testing.T) {
	if identity.AssignID("/src/clip.mp4") == identity.AssignID("/other/clip.mp4") {
		t.Fatal("different paths share an identifier")
	}
}

func TestAssignIDNormalizesEquivalentPaths(t *testing.T) {
	if identity.AssignID("/src/clip.mp4") != identity.AssignID("/src/./sub/../clip.mp4") {
		t.Fatal("equivalent paths produced different identifiers")
	}
}

func TestAssignIDShape(t *testing.T) {
	id := identity.AssignID("/src/clip.mp4")
	if !uuidPattern.MatchString(id) {
		t.Fatalf("identifier %q is not a v5 UUID", id)
	}
}
