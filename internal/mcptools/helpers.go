// Package mcptools exposes the lunar engine as MCP tools.
//
// Each tool follows the same shape:
// - a struct holding the shared Env, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a text result
package mcptools

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/magic-amatlan/backend/internal/locale"
	"github.com/magic-amatlan/backend/internal/lunar"
)

// Env holds what the lunar tools need to answer in the site's timezone and
// the caller's language.
type Env struct {
	Catalog     *locale.Catalog
	Location    *time.Location
	MaxResults  int
	HorizonDays int
	Now         func() time.Time
}

func (e Env) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now().In(e.location())
	}
	return e.Now().In(e.location())
}

// namer returns the lunar.Namer for lang, nil without a catalog.
func (e Env) namer(lang string) lunar.Namer {
	if e.Catalog == nil {
		return nil
	}
	return e.Catalog.Namer(lang)
}

func (e Env) phaseName(n lunar.Namer, p lunar.Phase) string {
	if n == nil {
		return p.String()
	}
	return n.Name(p)
}

// dateArg parses an RFC 3339 timestamp or YYYY-MM-DD date argument,
// defaulting to now when it is absent.
func (e Env) dateArg(req mcp.CallToolRequest, key string) (time.Time, error) {
	raw := req.GetString(key, "")
	if raw == "" {
		return e.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(e.location()), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, e.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", key)
	}
	return t, nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

var langOption = mcp.WithString("lang",
	mcp.Description("Response language as a tag or Accept-Language value, e.g. 'es' or 'es-MX'. Defaults to English."),
)
