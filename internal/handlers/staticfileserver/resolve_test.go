package staticfileserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJoinPath(t *testing.T) {
	root := t.TempDir()

	testCases := []struct {
		name        string
		requestPath string
		want        string
	}{
		{"root", "/", root},
		{"empty", "", root},
		{"file", "/a/b.txt", filepath.Join(root, "a", "b.txt")},
		{"trailing slash", "/docs/", filepath.Join(root, "docs")},
		{"dot segments", "/a/./b/../c", filepath.Join(root, "a", "c")},
		{"parent at root is clamped", "/../../etc/passwd", filepath.Join(root, "etc", "passwd")},
		{"no leading slash", "x/y", filepath.Join(root, "x", "y")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := JoinPath(tc.requestPath, root)
			if err != nil {
				t.Fatalf("JoinPath(%q) returned error: %v", tc.requestPath, err)
			}
			if got != tc.want {
				t.Errorf("JoinPath(%q) = %q, want %q", tc.requestPath, got, tc.want)
			}
			if !strings.HasPrefix(got, root) {
				t.Errorf("JoinPath(%q) = %q escapes root %q", tc.requestPath, got, root)
			}
		})
	}
}

func TestResolve_Kinds(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dir"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	testCases := []struct {
		requestPath string
		want        Kind
	}{
		{"/", KindDirectory},
		{"/dir", KindDirectory},
		{"/dir/", KindDirectory},
		{"/file.txt", KindFile},
		{"/missing", KindMissing},
		{"/file.txt/child", KindMissing},
	}
	for _, tc := range testCases {
		res, err := Resolve(tc.requestPath, root)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", tc.requestPath, err)
		}
		if res.Kind != tc.want {
			t.Errorf("Resolve(%q).Kind = %v, want %v", tc.requestPath, res.Kind, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindFile.String() != "file" || KindDirectory.String() != "directory" || KindMissing.String() != "missing" {
		t.Error("unexpected Kind.String() values")
	}
}
