// Package library bridges to the automation surface of a desktop Bible-study
// application: launching it, waiting until it is ready, searching its resource
// library and rendering scripture passages.
package library

import "errors"

var (
	// ErrNotReady is returned when the application does not expose its root
	// object before the connect deadline or the context ends.
	ErrNotReady = errors.New("application not ready")
	// ErrUnsupportedPlatform is returned by DefaultLauncher where no
	// automation backend exists.
	ErrUnsupportedPlatform = errors.New("desktop automation is not supported on this platform")
)

// SearchResult is one resource returned by a library query.
type SearchResult struct {
	Title            string `json:"title" yaml:"title"`
	ResourceID       string `json:"resource_id" yaml:"resource_id"`
	Version          string `json:"version" yaml:"version"`
	ResourceType     string `json:"resource_type" yaml:"resource_type"`
	AbbreviatedTitle string `json:"abbreviated_title" yaml:"abbreviated_title"`
}

// Reference is a scripture reference resolved by the application. References
// that hold application handles also implement io.Closer; the Bridge closes
// them once the lookup is done.
type Reference interface {
	String() string
}

// Launcher starts or attaches to the application.
type Launcher interface {
	LaunchApplication() error
	// Application returns nil without error while the application is still
	// starting.
	Application() (Application, error)
	Close() error
}

// Application is the ready root object of the desktop application.
type Application interface {
	GetResourcesMatchingQuery(query string) ([]SearchResult, error)
	// ScanForReferences returns the references found in text in the order the
	// application reports them.
	ScanForReferences(text string) ([]Reference, error)
	CopyVerses(ref Reference) (string, error)
	Close() error
}
