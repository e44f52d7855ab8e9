// Package render turns author-supplied obituary markdown into HTML.
package render

import (
	"sync"

	"github.com/gomarkdown/markdown"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/evermore-app/evermore/internal/cache"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

// RenderObituary renders obituary markdown to HTML. Raw HTML in the
// source is dropped, not passed through: obituaries are authored by
// users and end up on public pages.
func RenderObituary(md []byte) []byte {
	opts := md_html.RendererOptions{
		Flags: md_html.CommonFlags | md_html.SkipHTML | md_html.HrefTargetBlank,
	}

	// HardLineBreak keeps single newlines visible; obituaries often
	// carry verse and line-by-line dedications.
	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.DefinitionLists | parser.AutoHeadingIDs |
			parser.OrderedListStart | parser.HardLineBreak | parser.NonBlockingSpace,
	).Parse(md)

	return markdown.Render(doc, md_html.NewRenderer(opts))
}

// Mutex to protect the check-render-set operation in RenderObituaryCached
var renderCacheMutex sync.Mutex

// RenderObituaryCached renders through the obituary cache. The content
// hash is the cache key; rendering is deterministic so entries never go
// stale.
func RenderObituaryCached(md []byte, contentHash string) []byte {
	if contentHash == "" {
		renderLogger.Warn().Msg("Content hash is empty, skipping cache check")
		return RenderObituary(md)
	}

	// First check cache without locking (fast path for cache hits)
	if cached, found := cache.GetRenderedObituary(contentHash); found {
		renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache hit for rendered obituary")
		return cached
	}

	renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache miss for rendered obituary")
	renderCacheMutex.Lock()
	defer renderCacheMutex.Unlock()

	html := RenderObituary(md)
	cache.SetRenderedObituary(contentHash, html)

	return html
}

// WarmCache pre-renders obituary markdown asynchronously to warm the cache
func WarmCache(md []byte, contentHash string) {
	renderLogger.Debug().Str("contentHash", contentHash).Msg("Starting cache warming")
	go func() {
		RenderObituaryCached(md, contentHash)
		renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache warming completed")
	}()
}
