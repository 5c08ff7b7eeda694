package toolchain

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommandArgv(t *testing.T) {
	tests := []struct {
		name string
		line Command
		arg  string
		want []string
	}{
		{
			name: "quoted windows path",
			line: `"C:\Program Files (x86)\Inno Setup 5\Compil32.exe" /cc "%1"`,
			arg:  `C:\src\cellprofiler.iss`,
			want: []string{`C:\Program Files (x86)\Inno Setup 5\Compil32.exe`, "/cc", `C:\src\cellprofiler.iss`},
		},
		{
			name: "no placeholder",
			line: "iscc /Q",
			arg:  "setup.iss",
			want: []string{"iscc", "/Q", "setup.iss"},
		},
		{
			name: "placeholder inside word",
			line: "compiler --input=%1",
			arg:  "a.iss",
			want: []string{"compiler", "--input=a.iss"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.line.Argv(tt.arg)
			if err != nil {
				t.Fatalf("Argv: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("argv mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandArgvInvalid(t *testing.T) {
	for _, line := range []Command{"", "   "} {
		if _, err := line.Argv("x"); !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("Argv(%q) err = %v, want ErrInvalidCommand", line, err)
		}
	}
}

func TestStaticLocator(t *testing.T) {
	loc := StaticLocator{"iscc": "iscc %1"}

	cmd, err := loc.Locate(context.Background(), Tool{Name: "iscc"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if cmd != "iscc %1" {
		t.Fatalf("cmd = %q, want %q", cmd, "iscc %1")
	}

	_, err = loc.Locate(context.Background(), Tool{Name: "other"})
	var mt *MissingToolError
	if !errors.As(err, &mt) || mt.Tool != "other" {
		t.Fatalf("err = %v, want MissingToolError for other", err)
	}
}

type failingLocator struct{ err error }

func (f failingLocator) Locate(context.Context, Tool) (Command, error) { return "", f.err }

func TestChain(t *testing.T) {
	tool := Tool{Name: "iscc", FileType: "InnoSetupScriptFile"}
	boom := errors.New("boom")

	tests := []struct {
		name    string
		chain   Chain
		want    Command
		wantErr error
	}{
		{
			name:  "first match wins",
			chain: Chain{StaticLocator{}, StaticLocator{"iscc": "a"}, StaticLocator{"iscc": "b"}},
			want:  "a",
		},
		{
			name:    "none found",
			chain:   Chain{StaticLocator{}, RegistryLocator{}},
			wantErr: ErrMissingTool,
		},
		{
			name:    "hard failure stops search",
			chain:   Chain{failingLocator{boom}, StaticLocator{"iscc": "a"}},
			wantErr: boom,
		},
		{
			name:    "empty chain",
			wantErr: ErrMissingTool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if runtime.GOOS == "windows" && tt.name == "none found" {
				t.Skip("registry may have the file type registered")
			}
			got, err := tt.chain.Locate(context.Background(), tool)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("cmd = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathLocatorMissing(t *testing.T) {
	_, err := PathLocator{}.Locate(context.Background(), Tool{Name: "cpbuild-no-such-tool"})
	if !errors.Is(err, ErrMissingTool) {
		t.Fatalf("err = %v, want ErrMissingTool", err)
	}
}
