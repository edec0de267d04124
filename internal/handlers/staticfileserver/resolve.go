package staticfileserver

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a request path would resolve to a location
// outside the served root.
var ErrOutsideRoot = errors.New("path resolves outside document root")

// Kind classifies what a resolved path points at.
type Kind int

const (
	KindMissing Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "missing"
	}
}

// Resolution is the on-disk target of a request path.
type Resolution struct {
	AbsPath string
	Kind    Kind
}

// JoinPath maps a URL path onto root without touching the file system.
//
// The request path is cleaned as a URL path first, so ".." segments cannot
// climb above "/". The joined result is then checked again against root,
// which catches separators that only the host OS interprets (e.g. "\" on
// Windows).
func JoinPath(requestPath, root string) (string, error) {
	cleaned := path.Clean("/" + requestPath)
	absRoot := filepath.Clean(root)
	target := filepath.Join(absRoot, filepath.FromSlash(cleaned))

	rel, err := filepath.Rel(absRoot, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, requestPath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, requestPath)
	}
	return target, nil
}

// Classify stats absPath. Any stat failure, including permission errors, is
// reported as KindMissing.
func Classify(absPath string) Kind {
	fi, err := os.Stat(absPath)
	if err != nil {
		return KindMissing
	}
	if fi.IsDir() {
		return KindDirectory
	}
	return KindFile
}

// Resolve joins requestPath onto root and classifies the result.
func Resolve(requestPath, root string) (Resolution, error) {
	abs, err := JoinPath(requestPath, root)
	if err != nil {
		return Resolution{Kind: KindMissing}, err
	}
	return Resolution{AbsPath: abs, Kind: Classify(abs)}, nil
}
