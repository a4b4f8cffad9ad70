package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/minhyannv/logos-assistant-go/pkg/library"
)

const (
	SearchLibraryName = "search_library"
	PassageTextName   = "get_passage_text"
)

type searchLibraryArgs struct {
	Query string `json:"query" jsonschema:"required,description=Keywords to match against titles in the user's library"`
}

type passageTextArgs struct {
	Reference string `json:"reference" jsonschema:"required,description=Scripture reference such as John 3:16 or Rom 5:1-11"`
}

// SearchLibrary returns the search_library tool. Each call connects a fresh
// bridge through connector.
func SearchLibrary(connector library.Connector) Handler {
	return NewFunc(SearchLibraryName,
		"Searches the user's Bible software library and returns a JSON list of matching resources.",
		func(ctx context.Context, args searchLibraryArgs) (string, error) {
			if strings.TrimSpace(args.Query) == "" {
				return "", errors.New("query is required")
			}
			return connector.SearchJSON(ctx, args.Query)
		})
}

// PassageText returns the get_passage_text tool.
func PassageText(connector library.Connector) Handler {
	return NewFunc(PassageTextName,
		"Returns the text of the first scripture passage found in the reference.",
		func(ctx context.Context, args passageTextArgs) (string, error) {
			if strings.TrimSpace(args.Reference) == "" {
				return "", errors.New("reference is required")
			}
			return connector.PassageJSON(ctx, args.Reference)
		})
}

// Builtin returns a registry with every library tool.
func Builtin(connector library.Connector) *Registry {
	return New(SearchLibrary(connector), PassageText(connector))
}
