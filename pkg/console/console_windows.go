//go:build windows

package console

import "golang.org/x/sys/windows"

const swHide = 0

var (
	kernel32         = windows.NewLazyDLL("kernel32.dll")
	getConsoleWindow = kernel32.NewProc("GetConsoleWindow")
	user32           = windows.NewLazyDLL("user32.dll")
	showWindow       = user32.NewProc("ShowWindow")
)

// Hide hides the console window the process was started with and reports
// whether there was one.
func Hide() bool {
	if err := getConsoleWindow.Find(); err != nil {
		return false
	}
	hwnd, _, _ := getConsoleWindow.Call()
	if hwnd == 0 {
		return false
	}
	_, _, _ = showWindow.Call(hwnd, swHide)
	return true
}
