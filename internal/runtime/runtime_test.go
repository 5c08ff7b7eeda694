package runtime

import (
	"strings"
	"testing"
)

func TestImageTag(t *testing.T) {
	tests := []struct {
		path     string
		wantRepo string
	}{
		{"/opt/sidecars/jvm-bridge.tar", "import/jvm-bridge"},
		{"/opt/sidecars/JVM Bridge.tar.gz", "import/jvm-bridge"},
		{"images/openjdk_8.oci", "import/openjdk_8"},
		{"/tmp/.tar", "import/archive"},
	}

	for _, tt := range tests {
		tag := imageTag(tt.path)
		repo, hash, ok := strings.Cut(tag, ":")
		if !ok || repo != tt.wantRepo {
			t.Fatalf("imageTag(%q) = %q, want repository %q", tt.path, tag, tt.wantRepo)
		}
		if len(hash) != 12 {
			t.Fatalf("imageTag(%q) = %q, want a 12 character tag", tt.path, tag)
		}
	}

	a := imageTag("/one/jvm.tar")
	if imageTag("/one/jvm.tar") != a {
		t.Fatal("imageTag is not deterministic")
	}
	if imageTag("/two/jvm.tar") == a {
		t.Fatal("archives in different directories produced the same tag")
	}
}

func TestDefaultPlatform(t *testing.T) {
	os, arch, ok := strings.Cut(defaultPlatform(), "/")
	if !ok || os != "linux" || arch == "" || strings.Contains(arch, "/") {
		t.Fatalf("defaultPlatform = %q, want linux/<arch>", defaultPlatform())
	}
}
