// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runPipedFunc  func(name string, args []string, stdout, stderr io.Writer) error

	// silent records every RunSilent command line and the ctx.Err() it saw.
	silent       []string
	silentCtxErr []error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	m.silent = append(m.silent, key)
	m.silentCtxErr = append(m.silentCtxErr, ctx.Err())
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdout, stderr io.Writer) error {
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "neither available",
			exec: &mockExecutor{
				availableBins: map[string]bool{},
				runnableCmds:  map[string]bool{},
			},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "both available, docker preferred",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"docker info": true, "podman info": true},
			},
			wantName: "docker",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "no container runtime available") {
					t.Errorf("error should mention no runtime available, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		image   string
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name:  "docker image exists",
			mkRT:  func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			image: "libreoffice:latest",
			cmds:  map[string]bool{"docker image inspect libreoffice:latest": true},
		},
		{
			name:    "docker image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			image:   "libreoffice:latest",
			cmds:    map[string]bool{},
			wantErr: true,
		},
		{
			name:  "podman image exists",
			mkRT:  func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			image: "libreoffice:latest",
			cmds:  map[string]bool{"podman image exists libreoffice:latest": true},
		},
		{
			name:    "podman image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			image:   "libreoffice:latest",
			cmds:    map[string]bool{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{runnableCmds: tt.cmds}
			rt := tt.mkRT(exec)
			err := rt.ImageExists(context.Background(), tt.image)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.image) {
					t.Errorf("error should mention image name, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRun(t *testing.T) {
	spec := RunSpec{
		Image: "libreoffice:latest",
		Mounts: []Mount{
			{Host: "/tmp/in", Container: "/work/in", ReadOnly: true},
			{Host: "/tmp/out", Container: "/work/out"},
		},
		Name:    "office2pdf-01j0",
		Workdir: "/work",
		Args:    []string{"soffice", "--headless"},
	}

	var gotName string
	var gotArgs []string
	exec := &mockExecutor{runPipedFunc: func(name string, args []string, stdout, stderr io.Writer) error {
		gotName, gotArgs = name, args
		_, _ = stderr.Write([]byte("warn: font substitution"))
		return nil
	}}

	var stderr bytes.Buffer
	spec.Stderr = &stderr
	if err := newPodmanRuntime(exec).Run(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotName != "podman" {
		t.Errorf("binary = %q, want podman", gotName)
	}
	want := "run --rm --network none --name office2pdf-01j0 -v /tmp/in:/work/in:ro -v /tmp/out:/work/out -w /work libreoffice:latest soffice --headless"
	if got := strings.Join(gotArgs, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
	if stderr.String() != "warn: font substitution" {
		t.Errorf("stderr not forwarded, got %q", stderr.String())
	}
}

func TestRunFailureWrapsError(t *testing.T) {
	exec := &mockExecutor{runPipedFunc: func(string, []string, io.Writer, io.Writer) error {
		return errors.New("container exited with code 1")
	}}
	err := newDockerRuntime(exec).Run(context.Background(), RunSpec{Image: "libreoffice:latest"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "exited with code 1") {
		t.Errorf("error should wrap cause, got: %v", err)
	}
}

func TestRunCancelledRemovesContainer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &mockExecutor{
		runnableCmds: map[string]bool{"docker rm -f office2pdf-01j0": true},
		runPipedFunc: func(string, []string, io.Writer, io.Writer) error {
			cancel()
			return context.Canceled
		},
	}

	err := newDockerRuntime(exec).Run(ctx, RunSpec{Image: "lo", Name: "office2pdf-01j0"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(exec.silent) != 1 || exec.silent[0] != "docker rm -f office2pdf-01j0" {
		t.Fatalf("cleanup calls = %v, want one docker rm -f", exec.silent)
	}
	if exec.silentCtxErr[0] != nil {
		t.Errorf("cleanup ran with a done context: %v", exec.silentCtxErr[0])
	}
}

func TestRunFailureKeepsContainerAlone(t *testing.T) {
	exec := &mockExecutor{runPipedFunc: func(string, []string, io.Writer, io.Writer) error {
		return errors.New("container exited with code 1")
	}}
	_ = newPodmanRuntime(exec).Run(context.Background(), RunSpec{Image: "lo", Name: "office2pdf-01j0"})
	if len(exec.silent) != 0 {
		t.Errorf("no cleanup expected for a container that exited, got %v", exec.silent)
	}
}

func TestRuntimeName(t *testing.T) {
	exec := &mockExecutor{}
	docker := newDockerRuntime(exec)
	if docker.Name() != "docker" {
		t.Errorf("docker runtime name = %q, want %q", docker.Name(), "docker")
	}
	podman := newPodmanRuntime(exec)
	if podman.Name() != "podman" {
		t.Errorf("podman runtime name = %q, want %q", podman.Name(), "podman")
	}
}
