//go:build !(linux || freebsd || openbsd || netbsd)

package clipboard

const waylandName = "wayland"
