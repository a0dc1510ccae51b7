package plan

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const fullPlan = `
base: python:3
copy:
  - src: app
    dest: /
  - src: requirements.txt
    dest: /requirements.txt
install:
  manifest: /requirements.txt
command: [python, main.py]
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(fullPlan))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Base != "python:3" {
		t.Errorf("base = %q, want python:3", p.Base)
	}
	if len(p.Copies) != 2 {
		t.Fatalf("len(copies) = %d, want 2", len(p.Copies))
	}
	if p.Copies[0].Src != "app" || p.Copies[0].Dest != "/" {
		t.Errorf("copies[0] = %+v, want app -> /", p.Copies[0])
	}
	if p.Copies[1].Src != "requirements.txt" || p.Copies[1].Dest != "/requirements.txt" {
		t.Errorf("copies[1] = %+v, want requirements.txt -> /requirements.txt", p.Copies[1])
	}
	if p.Install == nil || p.Install.Manifest != "/requirements.txt" {
		t.Errorf("install = %+v, want manifest /requirements.txt", p.Install)
	}
	if !reflect.DeepEqual(p.Command, []string{"python", "main.py"}) {
		t.Errorf("command = %v, want [python main.py]", p.Command)
	}
}

func TestParseMinimal(t *testing.T) {
	p, err := Parse([]byte("base: alpine:3.20\ncommand: [sleep, infinity]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Copies) != 0 {
		t.Errorf("len(copies) = %d, want 0", len(p.Copies))
	}
	if p.Install != nil {
		t.Errorf("install = %+v, want nil", p.Install)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{
			name: "missing base",
			in:   "command: [run]\n",
			want: ErrPlan,
		},
		{
			name: "missing command",
			in:   "base: alpine\n",
			want: ErrInvalidStartupCommand,
		},
		{
			name: "empty command",
			in:   "base: alpine\ncommand: []\n",
			want: ErrInvalidStartupCommand,
		},
		{
			name: "blank command executable",
			in:   "base: alpine\ncommand: [\"\"]\n",
			want: ErrInvalidStartupCommand,
		},
		{
			name: "relative copy destination",
			in:   "base: alpine\ncopy: [{src: app, dest: app}]\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "copy without source",
			in:   "base: alpine\ncopy: [{dest: /app}]\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "copy without destination",
			in:   "base: alpine\ncopy: [{src: app}]\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "install without manifest",
			in:   "base: alpine\ninstall: {tool: [apk, add]}\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "install with relative manifest",
			in:   "base: alpine\ninstall: {manifest: requirements.txt}\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "install tool with empty argument",
			in:   "base: alpine\ninstall: {manifest: /r.txt, tool: [pip, \"\"]}\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "unknown field",
			in:   "base: alpine\nentrypoint: [run]\ncommand: [run]\n",
			want: ErrPlan,
		},
		{
			name: "malformed yaml",
			in:   "base: [unclosed\n",
			want: ErrPlan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiln.yaml")
	if err := os.WriteFile(path, []byte(fullPlan), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Base != "python:3" {
		t.Errorf("base = %q, want python:3", p.Base)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrPlan) {
		t.Fatalf("error = %v, want %v", err, ErrPlan)
	}
}

func TestInstallArgv(t *testing.T) {
	tests := []struct {
		name    string
		install Install
		want    []string
	}{
		{
			name:    "default tool",
			install: Install{Manifest: "/requirements.txt"},
			want:    []string{"pip", "install", "-r", "/requirements.txt"},
		},
		{
			name:    "custom tool",
			install: Install{Manifest: "/deps.txt", Tool: []string{"pip3", "install", "--no-cache-dir", "-r"}},
			want:    []string{"pip3", "install", "--no-cache-dir", "-r", "/deps.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.install.Argv()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("argv = %v, want %v", got, tt.want)
			}
		})
	}
}
