package loader

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// executableScriptTypes are the script type attributes the loader collects.
// Anything else (JSON payloads, templates) stays in the markup.
var executableScriptTypes = map[string]bool{
	"":                       true,
	"text/javascript":        true,
	"application/javascript": true,
	"module":                 true,
}

// scriptRef is one collected script tag before source retrieval.
type scriptRef struct {
	url    string // external source, absolute
	inline string // inline source text
	index  int
	entry  bool
}

func (r scriptRef) name() string {
	if r.url != "" {
		return r.url
	}
	return fmt.Sprintf("inline-script-%d", r.index)
}

type extraction struct {
	template string
	scripts  []scriptRef
	styles   []string
}

// extract strips executable scripts out of the page, inlines fetchable
// stylesheets, and reassembles the remainder as a wrapper-embeddable
// template: head content under a qiankun-head element, body content at the
// top level.
func (l *HTTPLoader) extract(ctx context.Context, page *goquery.Document, publicPath string) (*extraction, error) {
	base, err := url.Parse(publicPath)
	if err != nil {
		return nil, fmt.Errorf("public path %s: %w", publicPath, err)
	}

	var ex extraction
	idx := 0
	page.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !executableScriptTypes[strings.ToLower(strings.TrimSpace(typ))] {
			return
		}
		_, isEntry := s.Attr("entry")
		if src, ok := s.Attr("src"); ok && src != "" {
			abs := resolveRef(base, src)
			if l.ignored(abs) {
				return
			}
			ex.scripts = append(ex.scripts, scriptRef{url: abs, index: idx, entry: isEntry})
			idx++
			s.Remove()
			return
		}
		text := s.Text()
		if strings.TrimSpace(text) == "" {
			s.Remove()
			return
		}
		ex.scripts = append(ex.scripts, scriptRef{inline: text, index: idx, entry: isEntry})
		idx++
		s.Remove()
	})

	page.Find("link[rel='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := resolveRef(base, href)
		if l.ignored(abs) {
			return
		}
		ex.styles = append(ex.styles, abs)
		css, err := l.fetchAsset(ctx, "stylesheet", abs)
		if err != nil {
			l.log.Warn("stylesheet fetch failed, leaving link in place",
				zap.String("href", abs),
				zap.Error(err))
			return
		}
		s.ReplaceWithHtml("<style>" + css + "</style>")
	})

	var sb strings.Builder
	if head := page.Find("head"); head.Length() > 0 {
		inner, err := head.Html()
		if err != nil {
			return nil, fmt.Errorf("serialize head: %w", err)
		}
		if strings.TrimSpace(inner) != "" {
			sb.WriteString("<qiankun-head>")
			sb.WriteString(inner)
			sb.WriteString("</qiankun-head>")
		}
	}
	if body := page.Find("body"); body.Length() > 0 {
		inner, err := body.Html()
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		sb.WriteString(inner)
	}
	ex.template = sb.String()
	return &ex, nil
}

func resolveRef(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
