//go:build !windows

package platform

func newSystemKeyListener() (KeyListener, bool) {
	return nil, false
}
