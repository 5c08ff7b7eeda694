package runtime

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name:      "override existing key",
			base:      []string{"A=1", "B=2"},
			overrides: []string{"A=override"},
			want:      []string{"A=override", "B=2"},
		},
		{
			name:      "add new key",
			base:      []string{"A=1"},
			overrides: []string{"B=2"},
			want:      []string{"A=1", "B=2"},
		},
		{
			name:      "empty base",
			overrides: []string{"A=1"},
			want:      []string{"A=1"},
		},
		{
			name: "empty overrides",
			base: []string{"A=1"},
			want: []string{"A=1"},
		},
		{
			name: "both empty",
			want: []string{},
		},
		{
			name: "value with equals sign",
			base: []string{"CMD=foo=bar"},
			want: []string{"CMD=foo=bar"},
		},
		{
			name:      "malformed entries skipped",
			base:      []string{"NOEQUALS", "A=1"},
			overrides: []string{"ALSO_BAD", "B=2"},
			want:      []string{"A=1", "B=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeEnv(tt.base, tt.overrides)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("env mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeEnvDoesNotAliasBase(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "A=1"

	mergeEnv(base, []string{"B=2"})

	if got := base[:2][1]; got != "" {
		t.Fatalf("base backing array modified: %q", got)
	}
}

func TestPrependPath(t *testing.T) {
	sep := string(os.PathListSeparator)

	tests := []struct {
		name string
		env  []string
		dirs []string
		want []string
	}{
		{
			name: "prepends to existing",
			env:  []string{"HOME=/h", "PATH=/usr/bin"},
			dirs: []string{"/opt/zmq", "/opt/java"},
			want: []string{"HOME=/h", "PATH=/opt/zmq" + sep + "/opt/java" + sep + "/usr/bin"},
		},
		{
			name: "adds missing",
			env:  []string{"HOME=/h"},
			dirs: []string{"/opt/zmq"},
			want: []string{"HOME=/h", "PATH=/opt/zmq"},
		},
		{
			name: "empty path value",
			env:  []string{"PATH="},
			dirs: []string{"/opt/zmq"},
			want: []string{"PATH=/opt/zmq"},
		},
		{
			name: "no dirs",
			env:  []string{"PATH=/usr/bin"},
			want: []string{"PATH=/usr/bin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prependPath(tt.env, tt.dirs)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("env mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrependPathLeavesInputUntouched(t *testing.T) {
	env := []string{"PATH=/usr/bin"}
	prependPath(env, []string{"/opt"})
	if env[0] != "PATH=/usr/bin" {
		t.Fatalf("input modified: %q", env[0])
	}
}
