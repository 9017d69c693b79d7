package loader

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/attax1994/qiankun/internal/config"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// maxEntrySize limits entry documents to 10MB to prevent memory exhaustion.
const maxEntrySize = 10 * 1024 * 1024

// HTTPLoader fetches application bundles over HTTP and prepares them for
// sandbox evaluation.
type HTTPLoader struct {
	client    *resty.Client
	log       *logging.Logger
	sanitizer *bluemonday.Policy
	ignores   []string
	breakers  *breakerSet
}

// New creates an HTTP loader per the configuration.
func New(cfg config.LoaderConfig, log *logging.Logger) *HTTPLoader {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryCount
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetHeader("User-Agent", cfg.UserAgent)
	client.SetTransport(retryClient.HTTPClient.Transport)

	l := &HTTPLoader{
		client:   client,
		log:      log,
		ignores:  cfg.Ignores,
		breakers: newBreakerSet(cfg.BreakerThreshold),
	}
	if cfg.Sanitize {
		l.sanitizer = bluemonday.UGCPolicy().AllowElements("qiankun-head", "style")
	}
	return l
}

// Load fetches the entry document, strips and collects its scripts, inlines
// its stylesheets, and returns the prepared bundle.
func (l *HTTPLoader) Load(ctx context.Context, app *types.AppDescriptor) (*types.LoadResult, error) {
	if app.Entry == "" {
		return nil, types.ConfigErrorf("application %s has no entry to load", app.Name)
	}

	resp, err := l.fetch(ctx, app.Entry)
	if err != nil {
		return nil, fmt.Errorf("fetch entry %s: %w", app.Entry, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch entry %s: status %s", app.Entry, resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("entry %s returned an empty document", app.Entry)
	}
	if len(body) > maxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", app.Entry, maxEntrySize)
	}
	contentType := resp.Header().Get("Content-Type")
	if mt := mimetype.Detect(body); !mt.Is("text/html") && !strings.Contains(contentType, "text/html") {
		return nil, fmt.Errorf("entry %s is %s, not HTML", app.Entry, mt.String())
	}

	// Redirects move the base the assets resolve against.
	final := app.Entry
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	publicPath, err := PublicPath(final)
	if err != nil {
		return nil, err
	}

	page, err := decodeHTML(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("parse entry %s: %w", app.Entry, err)
	}

	ex, err := l.extract(ctx, page, publicPath)
	if err != nil {
		return nil, err
	}

	template := ex.template
	if l.sanitizer != nil {
		template = l.sanitizer.Sanitize(template)
	}

	sources := make([]scriptSource, 0, len(ex.scripts))
	names := make([]string, 0, len(ex.scripts))
	for _, ref := range ex.scripts {
		src := ref.inline
		if ref.url != "" {
			src, err = l.fetchAsset(ctx, "script", ref.url)
			if err != nil {
				return nil, err
			}
		}
		sources = append(sources, scriptSource{name: ref.name(), src: src, entry: ref.entry})
		names = append(names, ref.name())
	}

	l.log.Debug("entry loaded",
		zap.String("app", app.Name),
		zap.String("public_path", publicPath),
		zap.Int("scripts", len(sources)),
		zap.Int("styles", len(ex.styles)))

	return &types.LoadResult{
		Template:        template,
		AssetPublicPath: publicPath,
		Scripts:         names,
		Styles:          ex.styles,
		ExecScripts:     execScripts(app.Name, sources),
	}, nil
}

func (l *HTTPLoader) fetchAsset(ctx context.Context, kind, assetURL string) (string, error) {
	resp, err := l.fetch(ctx, assetURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s %s: %w", kind, assetURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch %s %s: status %s", kind, assetURL, resp.Status())
	}
	return resp.String(), nil
}

// fetch runs one GET through the URL origin's circuit breaker.
func (l *HTTPLoader) fetch(ctx context.Context, rawURL string) (*resty.Response, error) {
	br := l.breakers.forURL(rawURL)
	if br == nil {
		return l.client.R().SetContext(ctx).Get(rawURL)
	}
	if err := br.allow(); err != nil {
		return nil, err
	}

	resp, err := l.client.R().SetContext(ctx).Get(rawURL)
	if err != nil && ctx.Err() != nil {
		// A canceled mount says nothing about origin health.
		br.release()
		return resp, err
	}

	// Transport failures and 5xx count against the origin; 4xx is the
	// application's own problem.
	ok := err == nil && resp.StatusCode() < 500
	if from, to := br.report(ok); from != to {
		origin := originOf(rawURL)
		if to == breakerOpen {
			l.log.Warn("origin circuit opened", zap.String("origin", origin))
		} else {
			l.log.Info("origin circuit closed", zap.String("origin", origin))
		}
	}
	return resp, err
}

func (l *HTTPLoader) ignored(assetURL string) bool {
	for _, pat := range l.ignores {
		if ok, _ := doublestar.Match(pat, assetURL); ok {
			return true
		}
	}
	return false
}

// PublicPath derives the base URL assets resolve against: the entry URL
// truncated to its directory, without query or fragment.
func PublicPath(entry string) (string, error) {
	u, err := url.Parse(entry)
	if err != nil {
		return "", types.ConfigErrorf("entry url %s: %w", entry, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if i := strings.LastIndex(u.Path, "/"); i >= 0 {
		u.Path = u.Path[:i+1]
	} else {
		u.Path = "/"
	}
	return u.String(), nil
}

// decodeHTML parses entry bytes into a document, converting legacy charsets
// to UTF-8. The Content-Type header wins; chardet fills in when it carries
// no charset.
func decodeHTML(data []byte, contentType string) (*goquery.Document, error) {
	if !strings.Contains(contentType, "charset") {
		detector := chardet.NewTextDetector()
		if result, err := detector.DetectBest(data); err == nil && result != nil {
			contentType = "text/html; charset=" + strings.ToLower(result.Charset)
		}
	}
	utf8Reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}
