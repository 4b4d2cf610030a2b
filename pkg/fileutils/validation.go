// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package fileutils

import (
	"fmt"
	"regexp"
	"strings"
)

// maxNameLength bounds names used in path construction.
const maxNameLength = 200

// segmentPattern is the allowed character set for one path segment.
var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateNameForPath validates a name (tenant id, package name) before it
// is used in file path construction. Names may contain "/" as a namespace
// separator; each segment must be non-empty, must not start with a dot,
// and is restricted to [a-zA-Z0-9._-]. This rules out path traversal,
// absolute paths, and null bytes.
func ValidateNameForPath(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name exceeds %d characters", maxNameLength)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("name contains a null byte")
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" {
			return fmt.Errorf("name %q contains an empty path segment", name)
		}
		if segment == "." || segment == ".." {
			return fmt.Errorf("name %q contains a relative path segment", name)
		}
		if !segmentPattern.MatchString(segment) {
			return fmt.Errorf("name segment %q contains invalid characters", segment)
		}
	}
	return nil
}
