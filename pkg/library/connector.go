package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Connector opens a fresh Bridge for every top-level call. Nothing is pooled:
// each call pays the full launch and ready wait.
type Connector struct {
	NewLauncher func() (Launcher, error)
	Options     Options
}

// Connect builds a launcher and waits for the application.
func (c Connector) Connect(ctx context.Context) (*Bridge, error) {
	if c.NewLauncher == nil {
		return nil, errors.New("connector has no launcher factory")
	}
	launcher, err := c.NewLauncher()
	if err != nil {
		return nil, fmt.Errorf("create launcher: %w", err)
	}
	bridge, err := Connect(ctx, launcher, c.Options)
	if err != nil {
		_ = launcher.Close()
		return nil, err
	}
	return bridge, nil
}

// SearchJSON runs a library search and encodes the results as a JSON array.
// An empty result set encodes as [].
func (c Connector) SearchJSON(ctx context.Context, query string) (string, error) {
	bridge, err := c.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = bridge.Close() }()

	results, err := bridge.SearchLibrary(ctx, query)
	if err != nil {
		return "", err
	}
	return encodeResults(results)
}

// PassageResult is the tool-facing payload of a passage lookup.
type PassageResult struct {
	Reference string `json:"reference"`
	Found     bool   `json:"found"`
	Text      string `json:"text"`
}

// PassageJSON looks up reference and encodes a PassageResult.
func (c Connector) PassageJSON(ctx context.Context, reference string) (string, error) {
	bridge, err := c.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = bridge.Close() }()

	text, found, err := bridge.GetPassageText(ctx, reference)
	if err != nil {
		return "", err
	}
	payload, err := marshalJSON(PassageResult{Reference: reference, Found: found, Text: text})
	if err != nil {
		return "", fmt.Errorf("encode passage: %w", err)
	}
	return payload, nil
}

func encodeResults(results []SearchResult) (string, error) {
	if results == nil {
		results = []SearchResult{}
	}
	payload, err := marshalJSON(results)
	if err != nil {
		return "", fmt.Errorf("encode search results: %w", err)
	}
	return payload, nil
}

// marshalJSON encodes v without HTML escaping so titles like "Law & Gospel"
// reach the model verbatim.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
