package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	loggerpkg "github.com/minhyannv/logos-assistant-go/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval   = time.Second
	DefaultConnectTimeout = 2 * time.Minute
)

// Options controls how a Bridge connects.
type Options struct {
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       loggerpkg.Logger
	Verbose      bool
}

func (o Options) normalize() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultConnectTimeout
	}
	o.Logger = loggerpkg.OrNop(o.Logger)
	return o
}

// Bridge is a connected session with the desktop application.
type Bridge struct {
	launcher Launcher
	app      Application
	opts     Options
}

// Connect launches the application and polls until its root object is
// available, the timeout elapses, or ctx ends.
func Connect(ctx context.Context, launcher Launcher, opts Options) (*Bridge, error) {
	if launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.normalize()

	if err := launcher.LaunchApplication(); err != nil {
		return nil, fmt.Errorf("launch application: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(opts.PollInterval), 1)
	started := time.Now()
	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w after %s: %w", ErrNotReady, time.Since(started).Round(time.Millisecond), ctxErr)
			}
			// The limiter refuses waits that would overrun the deadline.
			return nil, fmt.Errorf("%w within %s: %v", ErrNotReady, opts.Timeout, err)
		}

		app, err := launcher.Application()
		if err != nil {
			return nil, fmt.Errorf("get application: %w", err)
		}
		if app != nil {
			loggerpkg.Debug(opts.Verbose, opts.Logger, "application ready", map[string]any{
				"attempts": attempt,
				"elapsed":  time.Since(started).String(),
			})
			return &Bridge{launcher: launcher, app: app, opts: opts}, nil
		}
		loggerpkg.Debug(opts.Verbose, opts.Logger, "waiting for application", map[string]any{
			"attempt": attempt,
		})
	}
}

// SearchLibrary returns the resources matching query, in application order.
func (b *Bridge) SearchLibrary(ctx context.Context, query string) ([]SearchResult, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	results, err := b.app.GetResourcesMatchingQuery(query)
	if err != nil {
		return nil, fmt.Errorf("search library %q: %w", query, err)
	}
	loggerpkg.Debug(b.opts.Verbose, b.opts.Logger, "library search", map[string]any{
		"query":   query,
		"results": len(results),
	})
	return results, nil
}

// GetPassageText renders the first reference found in reference. found is
// false, with a nil error, when nothing in the text resolves to a reference.
func (b *Bridge) GetPassageText(ctx context.Context, reference string) (text string, found bool, err error) {
	if err := ctxErr(ctx); err != nil {
		return "", false, err
	}
	refs, err := b.app.ScanForReferences(reference)
	if err != nil {
		return "", false, fmt.Errorf("scan for references in %q: %w", reference, err)
	}
	defer releaseReferences(refs)
	if len(refs) == 0 {
		loggerpkg.Warn(b.opts.Logger, "no scripture reference found", map[string]any{
			"reference": reference,
		})
		return "", false, nil
	}

	text, err = b.app.CopyVerses(refs[0])
	if err != nil {
		return "", false, fmt.Errorf("copy verses %s: %w", refs[0], err)
	}
	return text, true, nil
}

// Close releases the application and launcher handles.
func (b *Bridge) Close() error {
	return errors.Join(b.app.Close(), b.launcher.Close())
}

// releaseReferences closes the references that hold application handles.
func releaseReferences(refs []Reference) {
	for _, ref := range refs {
		if c, ok := ref.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
