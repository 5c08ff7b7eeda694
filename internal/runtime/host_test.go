package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

// Runs the test binary as a child process in helper mode.
func helperCommand(mode string, args ...string) Command {
	return Command{
		Args: append([]string{os.Args[0], "-test.run=TestHelperProcess", "--", mode}, args...),
		Env:  []string{"CPBUILD_HELPER_PROCESS=1"},
	}
}

// Not a real test. Child processes started by helperCommand land here.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("CPBUILD_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}

	switch mode, rest := args[1], args[2:]; mode {
	case "echo":
		fmt.Fprint(os.Stdout, strings.Join(rest, " "))
	case "env":
		fmt.Fprint(os.Stdout, os.Getenv(rest[0]))
	case "fail":
		fmt.Fprint(os.Stderr, "failure detail")
		os.Exit(3)
	case "sleep":
		time.Sleep(time.Minute)
	}
}

func TestHostRun(t *testing.T) {
	res, err := Host{}.Run(context.Background(), helperCommand("echo", "hello", "world"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "hello world" {
		t.Fatalf("stdout = %q, want %q", res.Stdout, "hello world")
	}
}

func TestHostRunNonZeroExit(t *testing.T) {
	res, err := Host{}.Run(context.Background(), helperCommand("fail"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Stderr != "failure detail" {
		t.Fatalf("stderr = %q, want %q", res.Stderr, "failure detail")
	}
}

func TestHostRunEnvironment(t *testing.T) {
	cmd := helperCommand("env", "CPBUILD_TEST_VALUE")
	cmd.Env = append(cmd.Env, "CPBUILD_TEST_VALUE=from-child")

	res, err := Host{}.Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "from-child" {
		t.Fatalf("stdout = %q, want %q", res.Stdout, "from-child")
	}
	if v := os.Getenv("CPBUILD_TEST_VALUE"); v != "" {
		t.Fatalf("parent environment modified: %q", v)
	}
}

func TestHostRunSearchPaths(t *testing.T) {
	dir := t.TempDir()
	cmd := helperCommand("env", "PATH")
	cmd.SearchPaths = []string{dir}

	res, err := Host{}.Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.Stdout, dir+string(os.PathListSeparator)) && res.Stdout != dir {
		t.Fatalf("child PATH = %q, want prefix %q", res.Stdout, dir)
	}
	if strings.HasPrefix(os.Getenv("PATH"), dir) {
		t.Fatal("parent PATH modified")
	}
}

func TestHostRunErrors(t *testing.T) {
	if _, err := (Host{}).Run(context.Background(), Command{}); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("err = %v, want ErrEmptyCommand", err)
	}

	_, err := Host{}.Run(context.Background(), Command{Args: []string{"cpbuild-no-such-program"}})
	if !errors.Is(err, ErrStart) {
		t.Fatalf("err = %v, want ErrStart", err)
	}
}

func TestHostRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := Host{}.Run(ctx, helperCommand("sleep"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestProcessStopKillsAfterGrace(t *testing.T) {
	p, err := Host{}.Start(context.Background(), helperCommand("sleep"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := p.Stop(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-p.Done():
	default:
		t.Fatal("process still running after Stop")
	}

	// A second Stop is a no-op.
	if err := p.Stop(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
