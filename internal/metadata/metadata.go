package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	Version    = "freshest"
	CommitHash = "n/a"
	BuildTime  = "n/a"
)

var ErrIncompatibleVersion = errors.New("incompatible protocol version")

const devVersion = "freshest"

// Compatible fails when the peer runs a different major version.
func Compatible(remote string) error {
	if IsMajorDifference(Version, remote) {
		return fmt.Errorf("%w: local %s, remote %s", ErrIncompatibleVersion, Version, remote)
	}
	return nil
}

func IsMajorDifference(v1, v2 string) bool {
	if v1 == devVersion || v2 == devVersion {
		return false
	}

	return extractMajor(v1) != extractMajor(v2)
}

func extractMajor(v string) int {
	v = strings.TrimPrefix(v, "v.")
	v = strings.TrimPrefix(v, "v")

	major, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}

	return n
}
