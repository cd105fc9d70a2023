// internal/engine/hybrid/detector.go
package hybrid

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// MinPlausibleLength is the size below which a direct fetch is treated as an
// empty application shell.
const MinPlausibleLength = 500

// noScriptMarkers are phrases that static responses of script-rendered sites
// show in place of content.
var noScriptMarkers = []string{
	"enable javascript",
	"javascript is required",
	"javascript is disabled",
	"you need to enable javascript",
	"<noscript",
}

// NeedsRendering reports whether statically fetched markup is an application
// shell that must go through the rendering driver to show its items.
func NeedsRendering(markup string) bool {
	if len(strings.TrimSpace(markup)) < MinPlausibleLength {
		return true
	}

	lower := strings.ToLower(markup)
	for _, marker := range noScriptMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	if DetectFramework(lower) != "" && shellLike(lower) {
		return true
	}

	return hasStateGlobals(markup)
}

// DetectFramework detects common SPA frameworks in lowercased HTML
func DetectFramework(lower string) string {
	switch {
	case strings.Contains(lower, "data-reactroot") || strings.Contains(lower, "__next_data__"):
		return "React"
	case strings.Contains(lower, "ng-app") || strings.Contains(lower, "ng-version"):
		return "Angular"
	case strings.Contains(lower, "data-v-app") || strings.Contains(lower, "__nuxt"):
		return "Vue"
	}
	return ""
}

// shellLike reports whether the body carries almost no element structure,
// typical of an unrendered SPA entry document.
func shellLike(lower string) bool {
	return strings.Count(lower, "<div") < 3 && strings.Contains(lower, "<script")
}

// hasStateGlobals executes the document's inline scripts in a stub environment
// and reports whether they assign non-trivial application state globals. A
// page that ships its data as script state renders its items client-side.
func hasStateGlobals(markup string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false
	}

	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{})
	vm.Set("location", map[string]interface{}{"href": ""})
	vm.Set("console", map[string]interface{}{
		"log":   func(call goja.FunctionCall) goja.Value { return nil },
		"error": func(call goja.FunctionCall) goja.Value { return nil },
	})

	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		if t, ok := sel.Attr("type"); ok && t != "" && !strings.Contains(t, "javascript") {
			return
		}
		// Most inline scripts fail on the stub DOM; assignments that run
		// before the first DOM access still land on the global object.
		_, _ = vm.RunString(sel.Text())
	})

	for _, key := range vm.GlobalObject().Keys() {
		if isStandardGlobal(key) {
			continue
		}
		if looksLikeState(key) {
			return true
		}
	}
	return false
}

func looksLikeState(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range []string{"state", "initial", "preload", "props", "data", "config"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasPrefix(key, "__")
}

func isStandardGlobal(key string) bool {
	standards := map[string]bool{
		"window": true, "self": true, "document": true, "location": true, "console": true,
		"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
		"Date": true, "Math": true, "JSON": true, "RegExp": true, "Error": true,
		"Function": true, "parseInt": true, "parseFloat": true, "isNaN": true,
		"isFinite": true, "encodeURI": true, "decodeURI": true, "encodeURIComponent": true,
		"decodeURIComponent": true, "undefined": true, "NaN": true, "Infinity": true,
	}
	return standards[key]
}
