// Package locale resolves user-facing lunar text in the languages the site
// supports. Messages live in embedded go-i18n JSON files named
// active.<lang>.json.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/magic-amatlan/backend/internal/lunar"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLanguage is used when no requested language is supported.
var DefaultLanguage = language.English

// Catalog holds every loaded translation.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	logger  *zap.Logger
}

// New loads the embedded locale files.
func New(logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("locale")

	bundle := i18n.NewBundle(DefaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("reading locales: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			logger.Debug("skipping locale file", zap.String("file", name))
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("loading locale %s: %w", name, err)
		}
		logger.Debug("loaded locale", zap.String("file", name))
	}

	return &Catalog{
		bundle:  bundle,
		matcher: language.NewMatcher(bundle.LanguageTags()),
		logger:  logger,
	}, nil
}

// Languages lists the loaded languages, default first.
func (c *Catalog) Languages() []string {
	tags := c.bundle.LanguageTags()
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}

// Match returns the supported language that best fits the requested ones.
// Each entry may be a plain tag or a full Accept-Language header value.
func (c *Catalog) Match(langs ...string) language.Tag {
	_, idx := language.MatchStrings(c.matcher, langs...)
	return c.bundle.LanguageTags()[idx]
}

// Namer returns a lunar.Namer for the requested languages.
func (c *Catalog) Namer(langs ...string) *Namer {
	tag := c.Match(langs...)
	return &Namer{
		localizer: i18n.NewLocalizer(c.bundle, tag.String()),
		tag:       tag,
		logger:    c.logger,
	}
}

// Namer translates phase names, descriptions and feed text into one language.
type Namer struct {
	localizer *i18n.Localizer
	tag       language.Tag
	logger    *zap.Logger
}

var _ lunar.Namer = (*Namer)(nil)

// Language reports the language this namer resolved to.
func (n *Namer) Language() language.Tag {
	return n.tag
}

// Name returns the phase's display name, or its English name when no
// translation exists.
func (n *Namer) Name(p lunar.Phase) string {
	if msg, ok := n.localize(phaseKey(p, "name"), nil); ok {
		return msg
	}
	return p.String()
}

// Description returns the phase's description, or "" when none exists.
func (n *Namer) Description(p lunar.Phase) string {
	msg, _ := n.localize(phaseKey(p, "description"), nil)
	return msg
}

// Message localizes an arbitrary message ID with template data. The ID
// itself is returned when it is unknown.
func (n *Namer) Message(id string, data map[string]any) string {
	if msg, ok := n.localize(id, data); ok {
		return msg
	}
	return id
}

func (n *Namer) localize(id string, data map[string]any) (string, bool) {
	msg, err := n.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		n.logger.Debug("missing translation",
			zap.String("id", id),
			zap.String("lang", n.tag.String()),
			zap.Error(err),
		)
		return "", false
	}
	return msg, true
}

func phaseKey(p lunar.Phase, field string) string {
	return "phase_" + strings.ToLower(p.ID()) + "_" + field
}
