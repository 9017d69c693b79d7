package engine

import (
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/id"
	"github.com/attax1994/qiankun/internal/shared/types"
)

const (
	wrapperIDPrefix = "__qiankun_microapp_wrapper_for_"
	wrapperIDSuffix = "__"
	subRootTag      = "qiankun-shadow-root"
)

// BuildWrapper materializes the instance's wrapper element from the bundle
// template. The wrapper id embeds the instance identity so concurrent loads
// of one application never collide. With isolate set and supported by the
// document, the template's children are re-hosted under an isolated
// sub-root; the second return value is that sub-root, nil otherwise.
func BuildWrapper(doc *dom.Document, name string, instance id.InstanceID, template string, isolate, scopedCSS bool, log *logging.Logger) (*dom.Element, *dom.Element, error) {
	wrapper := doc.CreateElement("div")
	wrapper.SetAttr("id", wrapperIDPrefix+instance.Slug()+wrapperIDSuffix)
	wrapper.SetAttr("data-name", name)
	if scopedCSS {
		wrapper.SetAttr("data-qiankun", name)
	}

	if err := wrapper.SetInnerHTML(template); err != nil {
		return nil, nil, types.ConfigErrorf("template for %s: %w", name, err)
	}

	if !isolate {
		return wrapper, nil, nil
	}
	if !doc.IsolationSupported() {
		log.Warn("isolated sub-roots unavailable in this document, mounting without style isolation",
			zap.String("app", name))
		return wrapper, nil, nil
	}

	subRoot := doc.CreateElement(subRootTag)
	wrapper.MoveChildrenTo(subRoot)
	wrapper.AppendChild(subRoot)
	return wrapper, subRoot, nil
}
