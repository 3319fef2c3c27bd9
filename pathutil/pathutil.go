// Package pathutil implements the pure string-level path handling that sits
// in front of the filesystem's path resolver: splitting a path into
// components, and canonicalizing a cwd+input pair into an absolute path
// without touching any disk state.
//
// Grounded on original_source/kernel/fs/fs.c's path_split_component and the
// parent/leaf splitting repeated in fs_make_dir/fs_create_file/fs_delete.
package pathutil

import (
	"strings"

	"github.com/b3p3k0/AIOS/layout"
	"github.com/b3p3k0/AIOS/aioserrors"
)

// Split breaks path into its non-empty, slash-delimited components, skipping
// runs of consecutive slashes. It fails if path plus its terminator exceeds
// MaxPathLength or any component is NAME_MAX bytes or longer.
func Split(path string) ([]string, error) {
	if len(path)+1 > layout.MaxPathLength {
		return nil, aioserrors.ErrInvalidArgument.WithMessage("path exceeds maximum length")
	}

	var components []string
	for _, c := range strings.Split(path, "/") {
		if c == "" {
			continue
		}
		if len(c) > layout.MaxNameLength-1 {
			return nil, aioserrors.ErrInvalidArgument.WithMessage("path component exceeds maximum name length")
		}
		components = append(components, c)
	}
	return components, nil
}

// IsAbsolute reports whether path begins with a slash.
func IsAbsolute(path string) bool {
	return strings.HasPrefix(path, "/")
}

// SplitParentLeaf splits path into its parent directory path and final
// component (the "leaf"), matching the last-slash scan every mutating
// operation in the original performs before resolving the parent.
//
// A path with no slash resolves to parent "." (the starting directory) and
// itself as the leaf. A path whose last slash is the first byte (an
// absolute path with a single component) resolves to parent "/".
func SplitParentLeaf(path string) (parentPath, leaf string) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ".", path
	}
	leaf = path[idx+1:]
	if idx == 0 {
		return "/", leaf
	}
	return path[:idx], leaf
}

// Canonicalize resolves cwd (an absolute path) and input (absolute or
// relative) into an absolute, canonical path: "." components are dropped,
// ".." components pop the preceding segment (or are ignored against an
// empty stack), and the result always begins with "/". It performs no
// filesystem lookups -- the caller still re-walks the resulting path through
// the resolver.
func Canonicalize(cwd, input string) (string, error) {
	base := input
	if !IsAbsolute(input) {
		base = cwd + "/" + input
	}

	components, err := Split(base)
	if err != nil {
		return "", err
	}

	var stack []string
	for _, c := range components {
		switch c {
		case ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, c)
		}
	}

	if len(stack) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(stack, "/"), nil
}
