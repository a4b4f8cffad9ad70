//go:build !windows

package library

// DefaultLauncher returns the platform automation launcher. Outside Windows
// there is none; use a Fixture instead.
func DefaultLauncher() (Launcher, error) {
	return nil, ErrUnsupportedPlatform
}
