//go:build !windows

package platform

func newSystemClipboard() (Clipboard, bool) {
	return nil, false
}
