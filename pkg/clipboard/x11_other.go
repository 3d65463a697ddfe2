//go:build !(linux || freebsd || openbsd || netbsd)

package clipboard

const x11Name = "x11"
