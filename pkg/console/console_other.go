//go:build !windows

package console

// Hide is a no-op: only Windows attaches a console window to the process.
func Hide() bool { return false }
