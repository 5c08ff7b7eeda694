package bundle

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestManifestAppendOnly(t *testing.T) {
	m := NewManifest()
	m.Add("artwork", "a.png", "b.png")
	m.Add("imagej/jars", "p.jar")
	m.Add("artwork", "b.png", "c.png")
	m.AddPinned(".", "libzmq.pyd")
	m.Add("./Microsoft.VC90.CRT", "msvcr90.dll")

	want := []Pair{
		{Dest: "artwork", Source: "a.png"},
		{Dest: "artwork", Source: "b.png"},
		{Dest: "artwork", Source: "c.png"},
		{Dest: "imagej/jars", Source: "p.jar"},
		{Dest: ".", Source: "libzmq.pyd", Pinned: true},
		{Dest: "Microsoft.VC90.CRT", Source: "msvcr90.dll"},
	}
	if diff := cmp.Diff(want, m.Pairs()); diff != "" {
		t.Fatalf("pairs mismatch (-want +got):\n%s", diff)
	}

	wantDests := []string{"artwork", "imagej/jars", ".", "Microsoft.VC90.CRT"}
	if diff := cmp.Diff(wantDests, m.Destinations()); diff != "" {
		t.Fatalf("destinations mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestPinConflict(t *testing.T) {
	m := NewManifest()
	m.Add(".", "/x/libzmq.pyd")

	err := m.AddPinned(".", "/x/zmq.pyd", "/x/libzmq.pyd")
	if !errors.Is(err, ErrPinConflict) {
		t.Fatalf("err = %v, want ErrPinConflict", err)
	}

	want := []Pair{{Dest: ".", Source: "/x/libzmq.pyd"}}
	if diff := cmp.Diff(want, m.Pairs()); diff != "" {
		t.Fatalf("pairs changed by a rejected add (-want +got):\n%s", diff)
	}

	m = NewManifest()
	m.AddPinned(".", "/x/libzmq.pyd")
	if err := m.Add(".", "/x/libzmq.pyd"); err != nil {
		t.Fatalf("Add after AddPinned: %v", err)
	}
	want = []Pair{{Dest: ".", Source: "/x/libzmq.pyd", Pinned: true}}
	if diff := cmp.Diff(want, m.Pairs()); diff != "" {
		t.Fatalf("pairs (-want +got):\n%s", diff)
	}
}

func TestManifestIncludesExcludes(t *testing.T) {
	m := NewManifest()
	m.Include("zmq.backend", "zmq.backend.cython")
	m.Include("zmq.backend")
	m.Exclude("libzmq.pyd")
	m.Exclude("libzmq.pyd")

	if diff := cmp.Diff([]string{"zmq.backend", "zmq.backend.cython"}, m.Includes); diff != "" {
		t.Fatalf("includes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"libzmq.pyd"}, m.Excludes); diff != "" {
		t.Fatalf("excludes (-want +got):\n%s", diff)
	}
}

func TestManifestSealed(t *testing.T) {
	m := NewManifest()
	m.Add("artwork", "a.png")
	m.Seal()

	checks := map[string]error{
		"Add":       m.Add("artwork", "b.png"),
		"AddPinned": m.AddPinned(".", "x.pyd"),
		"Include":   m.Include("mod"),
		"Exclude":   m.Exclude("x.pyd"),
		"SetScript": m.SetScript("main.py"),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrSealed) {
			t.Errorf("%s after Seal: err = %v, want ErrSealed", name, err)
		}
	}
	if n := len(m.Pairs()); n != 1 {
		t.Fatalf("pairs = %d, want 1", n)
	}
}

func TestCleanDest(t *testing.T) {
	tests := map[string]string{
		"":                     ".",
		".":                    ".",
		"./Microsoft.VC90.CRT": "Microsoft.VC90.CRT",
		"imagej/jars/":         "imagej/jars",
		"a/../b":               "b",
	}
	for in, want := range tests {
		if got := cleanDest(in); got != want {
			t.Errorf("cleanDest(%q) = %q, want %q", in, got, want)
		}
	}
}
