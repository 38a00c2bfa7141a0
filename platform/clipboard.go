package platform

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	designclip "golang.design/x/clipboard"
)

// AtottoClipboard uses the platform clipboard tools wrapped by atotto/clipboard
type AtottoClipboard struct{}

// NewAtottoClipboard creates the default clipboard backend
func NewAtottoClipboard() *AtottoClipboard {
	return &AtottoClipboard{}
}

// Get retrieves text from the clipboard
func (c *AtottoClipboard) Get() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return text, nil
}

// Set replaces the clipboard text
func (c *AtottoClipboard) Set(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

var (
	designInitOnce sync.Once
	designInitErr  error
)

// NativeClipboard talks to the OS clipboard directly through golang.design/x/clipboard
type NativeClipboard struct{}

// NewNativeClipboard initializes the native clipboard. Init runs once per process.
func NewNativeClipboard() (*NativeClipboard, error) {
	designInitOnce.Do(func() {
		designInitErr = designclip.Init()
	})
	if designInitErr != nil {
		return nil, fmt.Errorf("failed to initialize native clipboard: %w", designInitErr)
	}
	return &NativeClipboard{}, nil
}

// Get retrieves text from the clipboard
func (c *NativeClipboard) Get() (string, error) {
	return string(designclip.Read(designclip.FmtText)), nil
}

// Set replaces the clipboard text
func (c *NativeClipboard) Set(text string) error {
	designclip.Write(designclip.FmtText, []byte(text))
	return nil
}
