package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cellprofiler/cpbuild/internal/project"
	"github.com/cellprofiler/cpbuild/internal/runtime"
	"github.com/google/go-cmp/cmp"
)

// Records the calls a harness makes.
type fakeSidecar struct {
	startErr error
	events   *[]string
	stopCtx  context.Context
}

func (s *fakeSidecar) Start(context.Context) error {
	*s.events = append(*s.events, "start")
	return s.startErr
}

func (s *fakeSidecar) Stop(ctx context.Context) error {
	*s.events = append(*s.events, "stop")
	s.stopCtx = ctx
	return nil
}

func recordingSuite(events *[]string, code int, err error) SuiteFunc {
	return func(_ context.Context, args, env []string) (int, error) {
		*events = append(*events, fmt.Sprintf("suite %v %v", args, env))
		return code, err
	}
}

func TestHarnessRun(t *testing.T) {
	var events []string
	h := &Harness{
		Sidecar: &fakeSidecar{events: &events},
		Suite:   recordingSuite(&events, 0, nil),
		Env:     []string{"OMP_NUM_THREADS=1"},
	}

	code, err := h.Run(context.Background(), []string{"-k", "pipeline"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("status = %d, want 0", code)
	}

	want := []string{"start", "suite [-k pipeline] [OMP_NUM_THREADS=1]", "stop"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestHarnessReturnsSuiteStatus(t *testing.T) {
	var events []string
	h := &Harness{
		Sidecar: &fakeSidecar{events: &events},
		Suite:   recordingSuite(&events, 5, nil),
	}

	code, err := h.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 5 {
		t.Fatalf("status = %d, want 5", code)
	}
	if events[len(events)-1] != "stop" {
		t.Fatalf("sidecar not stopped: %v", events)
	}
}

func TestHarnessStopsSidecarOnSuiteError(t *testing.T) {
	var events []string
	h := &Harness{
		Sidecar: &fakeSidecar{events: &events},
		Suite:   recordingSuite(&events, 0, ErrSuite),
	}

	if _, err := h.Run(context.Background(), nil); !errors.Is(err, ErrSuite) {
		t.Fatalf("err = %v, want ErrSuite", err)
	}
	if events[len(events)-1] != "stop" {
		t.Fatalf("sidecar not stopped: %v", events)
	}
}

func TestHarnessStopsSidecarOnPanic(t *testing.T) {
	var events []string
	h := &Harness{
		Sidecar: &fakeSidecar{events: &events},
		Suite: SuiteFunc(func(context.Context, []string, []string) (int, error) {
			panic("suite exploded")
		}),
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		h.Run(context.Background(), nil)
	}()

	if diff := cmp.Diff([]string{"start", "stop"}, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestHarnessStopsSidecarAfterCancel(t *testing.T) {
	var events []string
	sidecar := &fakeSidecar{events: &events}
	ctx, cancel := context.WithCancel(context.Background())

	h := &Harness{
		Sidecar: sidecar,
		Suite: SuiteFunc(func(ctx context.Context, _, _ []string) (int, error) {
			cancel()
			return 0, ctx.Err()
		}),
	}

	if _, err := h.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sidecar.stopCtx == nil || sidecar.stopCtx.Err() != nil {
		t.Fatal("sidecar stopped with a cancelled context")
	}
}

func TestHarnessSidecarStartFailure(t *testing.T) {
	var events []string
	h := &Harness{
		Sidecar: &fakeSidecar{events: &events, startErr: ErrSidecar},
		Suite:   recordingSuite(&events, 0, nil),
	}

	code, err := h.Run(context.Background(), nil)
	if !errors.Is(err, ErrSidecar) || code == 0 {
		t.Fatalf("Run = %d, %v, want failure with ErrSidecar", code, err)
	}
	if diff := cmp.Diff([]string{"start"}, events); diff != "" {
		t.Fatalf("suite ran after sidecar failure (-want +got):\n%s", diff)
	}
}

func TestHarnessWithoutSidecar(t *testing.T) {
	var events []string
	h := &Harness{Suite: recordingSuite(&events, 0, nil)}

	if _, err := h.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v, want the suite only", events)
	}
}

type fakeRunner struct {
	got  runtime.Command
	code int
}

func (r *fakeRunner) Run(_ context.Context, c runtime.Command) (*runtime.ExecResult, error) {
	r.got = c
	return &runtime.ExecResult{ExitCode: r.code}, nil
}

func TestCommandSuite(t *testing.T) {
	runner := &fakeRunner{code: 1}
	s := &CommandSuite{
		Command:     []string{"pytest", "-q"},
		SearchPaths: []string{"/opt/zmq/lib"},
		Runner:      runner,
	}

	code, err := s.Run(context.Background(), []string{"tests/modules"}, []string{"MKL_NUM_THREADS=1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 1 {
		t.Fatalf("status = %d, want 1", code)
	}

	want := runtime.Command{
		Args:        []string{"pytest", "-q", "tests/modules"},
		Env:         []string{"MKL_NUM_THREADS=1"},
		SearchPaths: []string{"/opt/zmq/lib"},
	}
	if diff := cmp.Diff(want, runner.got); diff != "" {
		t.Fatalf("command mismatch (-want +got):\n%s", diff)
	}
	if len(s.Command) != 2 {
		t.Fatalf("Command mutated: %v", s.Command)
	}
}

func TestCommandSuiteEmpty(t *testing.T) {
	_, err := (&CommandSuite{}).Run(context.Background(), nil, nil)
	if !errors.Is(err, ErrSuite) || !errors.Is(err, runtime.ErrEmptyCommand) {
		t.Fatalf("err = %v, want ErrSuite wrapping ErrEmptyCommand", err)
	}
}

// Not a real test. Sidecar processes started by the tests land here.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("CPBUILD_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Println("sidecar up")
	time.Sleep(time.Minute)
	os.Exit(0)
}

func TestProcessSidecar(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "jvm.log")
	s := &ProcessSidecar{
		Name:    "jvm",
		Command: []string{os.Args[0], "-test.run=TestHelperProcess"},
		Env:     []string{"CPBUILD_HELPER_PROCESS=1"},
		Grace:   time.Second,
		LogPath: logPath,
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	proc := s.proc

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-proc.Done():
	default:
		t.Fatal("sidecar process still running after Stop")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("log file: %v", err)
	}
}

func TestProcessSidecarStartFailure(t *testing.T) {
	s := &ProcessSidecar{
		Name:    "jvm",
		Command: []string{"cpbuild-no-such-program"},
		LogPath: filepath.Join(t.TempDir(), "jvm.log"),
	}

	if err := s.Start(context.Background()); !errors.Is(err, ErrSidecar) {
		t.Fatalf("err = %v, want ErrSidecar", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}

func TestNewSidecar(t *testing.T) {
	tests := []struct {
		name string
		cfg  project.Sidecar
		want string
	}{
		{name: "none", cfg: project.Sidecar{Name: "jvm"}, want: "<nil>"},
		{name: "process", cfg: project.Sidecar{Name: "jvm", Command: []string{"java"}}, want: "*harness.ProcessSidecar"},
		{name: "image", cfg: project.Sidecar{Name: "jvm", Image: "docker.io/library/eclipse-temurin:8"}, want: "*harness.ContainerSidecar"},
		{name: "archive", cfg: project.Sidecar{Name: "jvm", Archive: "jvm.tar"}, want: "*harness.ContainerSidecar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprintf("%T", NewSidecar(tt.cfg, nil))
			if got != tt.want {
				t.Fatalf("NewSidecar = %s, want %s", got, tt.want)
			}
		})
	}
}
