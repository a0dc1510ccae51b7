package build

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/opencontainers/go-digest"

	"github.com/kilnhq/kilnd/internal/plan"
)

// Points scratch space at a test-owned directory for the duration of
// the test.
func setScratch(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
}

// Creates a small application tree for layer tests.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// Reads back every header of a gzip tar layer archive.
func readLayer(t *testing.T, path string) []*tar.Header {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer gzr.Close()

	var headers []*tar.Header
	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		headers = append(headers, hdr)
	}
	return headers
}

func TestBuildLayerDirectoryContents(t *testing.T) {
	setScratch(t)
	root := writeTree(t, map[string]string{
		"app/main.py":         "print('hi')\n",
		"app/static/site.css": "body {}\n",
		"app/wsgi.py":         "from main import app\n",
	})

	layer, err := buildLayer(root, plan.CopyEntry{Src: "app", Dest: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(layer.Path)

	headers := readLayer(t, layer.Path)

	want := []string{"main.py", "static/", "static/site.css", "wsgi.py"}
	if len(headers) != len(want) {
		t.Fatalf("len(headers) = %d, want %d", len(headers), len(want))
	}
	for i, hdr := range headers {
		if hdr.Name != want[i] {
			t.Errorf("headers[%d].Name = %q, want %q", i, hdr.Name, want[i])
		}
		if hdr.Uid != 0 || hdr.Gid != 0 {
			t.Errorf("headers[%d] owner = %d:%d, want 0:0", i, hdr.Uid, hdr.Gid)
		}
		if hdr.Uname != "" || hdr.Gname != "" {
			t.Errorf("headers[%d] owner names = %q:%q, want empty", i, hdr.Uname, hdr.Gname)
		}
	}
}

func TestBuildLayerFileDestination(t *testing.T) {
	setScratch(t)
	root := writeTree(t, map[string]string{
		"requirements.txt": "flask==3.0.0\n",
	})

	layer, err := buildLayer(root, plan.CopyEntry{Src: "requirements.txt", Dest: "/requirements.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(layer.Path)

	headers := readLayer(t, layer.Path)
	if len(headers) != 1 {
		t.Fatalf("len(headers) = %d, want 1", len(headers))
	}
	if headers[0].Name != "requirements.txt" {
		t.Errorf("name = %q, want requirements.txt", headers[0].Name)
	}
	if headers[0].Typeflag != tar.TypeReg {
		t.Errorf("typeflag = %v, want regular file", headers[0].Typeflag)
	}
}

func TestBuildLayerNestedDestination(t *testing.T) {
	setScratch(t)
	root := writeTree(t, map[string]string{
		"settings.ini": "debug = false\n",
	})

	layer, err := buildLayer(root, plan.CopyEntry{Src: "settings.ini", Dest: "/etc/app/settings.ini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(layer.Path)

	headers := readLayer(t, layer.Path)

	want := []string{"etc/", "etc/app/", "etc/app/settings.ini"}
	if len(headers) != len(want) {
		t.Fatalf("len(headers) = %d, want %d", len(headers), len(want))
	}
	for i, hdr := range headers {
		if hdr.Name != want[i] {
			t.Errorf("headers[%d].Name = %q, want %q", i, hdr.Name, want[i])
		}
	}
}

func TestBuildLayerDeterminism(t *testing.T) {
	setScratch(t)
	root := writeTree(t, map[string]string{
		"app/main.py":   "print('hi')\n",
		"app/helper.py": "pass\n",
	})

	first, err := buildLayer(root, plan.CopyEntry{Src: "app", Dest: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(first.Path)

	second, err := buildLayer(root, plan.CopyEntry{Src: "app", Dest: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(second.Path)

	if first.Descriptor.Digest != second.Descriptor.Digest {
		t.Errorf("blob digests differ: %s vs %s", first.Descriptor.Digest, second.Descriptor.Digest)
	}
	if first.DiffID != second.DiffID {
		t.Errorf("diff IDs differ: %s vs %s", first.DiffID, second.DiffID)
	}

	if err := os.WriteFile(filepath.Join(root, "app", "main.py"), []byte("print('changed')\n"), 0644); err != nil {
		t.Fatal(err)
	}

	third, err := buildLayer(root, plan.CopyEntry{Src: "app", Dest: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(third.Path)

	if third.Descriptor.Digest == first.Descriptor.Digest {
		t.Error("changed content produced an identical blob digest")
	}
}

func TestBuildLayerDigests(t *testing.T) {
	setScratch(t)
	root := writeTree(t, map[string]string{
		"requirements.txt": "flask==3.0.0\n",
	})

	layer, err := buildLayer(root, plan.CopyEntry{Src: "requirements.txt", Dest: "/requirements.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(layer.Path)

	f, err := os.Open(layer.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	blobDigest, err := digest.SHA256.FromReader(f)
	if err != nil {
		t.Fatal(err)
	}
	if blobDigest != layer.Descriptor.Digest {
		t.Errorf("blob digest = %s, want %s", blobDigest, layer.Descriptor.Digest)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != layer.Descriptor.Size {
		t.Errorf("blob size = %d, want %d", info.Size(), layer.Descriptor.Size)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	gzr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer gzr.Close()

	diffID, err := digest.SHA256.FromReader(gzr)
	if err != nil {
		t.Fatal(err)
	}
	if diffID != layer.DiffID {
		t.Errorf("diff ID = %s, want %s", diffID, layer.DiffID)
	}
}

func TestBuildLayerMissingSource(t *testing.T) {
	setScratch(t)

	_, err := buildLayer(t.TempDir(), plan.CopyEntry{Src: "app", Dest: "/"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrSourcePathMissing) {
		t.Fatalf("error = %v, want %v", err, ErrSourcePathMissing)
	}
}

func TestBuildLayerSymlink(t *testing.T) {
	setScratch(t)
	root := writeTree(t, map[string]string{
		"app/main.py": "print('hi')\n",
	})
	if err := os.Symlink("main.py", filepath.Join(root, "app", "current.py")); err != nil {
		t.Fatal(err)
	}

	layer, err := buildLayer(root, plan.CopyEntry{Src: "app", Dest: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(layer.Path)

	var found bool
	for _, hdr := range readLayer(t, layer.Path) {
		if hdr.Name == "current.py" {
			found = true
			if hdr.Typeflag != tar.TypeSymlink {
				t.Errorf("typeflag = %v, want symlink", hdr.Typeflag)
			}
			if hdr.Linkname != "main.py" {
				t.Errorf("linkname = %q, want main.py", hdr.Linkname)
			}
		}
	}
	if !found {
		t.Fatal("symlink entry missing from layer")
	}
}

func TestDestFilePath(t *testing.T) {
	tests := []struct {
		name string
		dest string
		src  string
		want string
	}{
		{name: "explicit file path", dest: "/requirements.txt", src: "requirements.txt", want: "/requirements.txt"},
		{name: "directory destination", dest: "/opt/", src: "config/settings.ini", want: "/opt/settings.ini"},
		{name: "root destination", dest: "/", src: "requirements.txt", want: "/requirements.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := destFilePath(tt.dest, tt.src); got != tt.want {
				t.Fatalf("destFilePath(%q, %q) = %q, want %q", tt.dest, tt.src, got, tt.want)
			}
		})
	}
}

func TestTarName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/", want: ""},
		{in: "/requirements.txt", want: "requirements.txt"},
		{in: "/opt/app", want: "opt/app"},
		{in: "/opt//app/", want: "opt/app"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := tarName(tt.in); got != tt.want {
				t.Fatalf("tarName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
