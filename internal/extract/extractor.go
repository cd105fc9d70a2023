// Package extract applies an extraction target's selectors to one page's
// markup, producing raw field maps.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/pkg/models"
)

// Items applies the target to the markup and returns one field map per item
// container. For each field: first matching descendant, configured attribute
// or trimmed text; no match yields a nil value, a matched but empty element
// yields "". Unparseable markup yields zero items.
func Items(markup string, target models.ExtractionTarget, detailAPI *models.DetailAPIPlan) []models.Item {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse markup")
		return nil
	}

	var idRegex *regexp.Regexp
	if detailAPI != nil && detailAPI.IDRegex != "" {
		idRegex, err = regexp.Compile(detailAPI.IDRegex)
		if err != nil {
			log.Warn().Err(err).Str("regex", detailAPI.IDRegex).Msg("Ignoring unparseable id regex")
		}
	}

	containers := doc.Find(target.ItemContainerSelector)
	log.Debug().
		Int("count", containers.Length()).
		Str("selector", target.ItemContainerSelector).
		Msg("Matched item containers")

	items := make([]models.Item, 0, containers.Length())
	containers.Each(func(i int, container *goquery.Selection) {
		item := make(models.Item, len(target.FieldSelectors))
		for field, selector := range target.FieldSelectors {
			item[field] = fieldValue(container, selector, target.FieldAttributes[field])
		}

		if target.DetailLinkSelector != "" {
			if _, exists := item[models.DetailLinkField]; !exists {
				attr := target.FieldAttributes[models.DetailLinkField]
				if attr == "" {
					attr = "href"
				}
				if link := attrValue(container, target.DetailLinkSelector, attr); link != nil {
					item[models.DetailLinkField] = link
				}
			}
		}

		if detailAPI != nil {
			if id := apiID(container, detailAPI, idRegex); id != nil {
				item[models.DetailAPIIDField] = id
			}
		}

		items = append(items, item)
	})
	return items
}

// fieldValue reads one field from a container: configured attribute if set,
// trimmed text otherwise. Returns nil on no match.
func fieldValue(container *goquery.Selection, selector, attribute string) *string {
	el := container.Find(selector).First()
	if el.Length() == 0 {
		return nil
	}
	if attribute != "" {
		v, ok := el.Attr(attribute)
		if !ok {
			return nil
		}
		return &v
	}
	text := strings.TrimSpace(el.Text())
	return &text
}

// attrValue reads an attribute from the first match, nil when either is absent.
func attrValue(container *goquery.Selection, selector, attribute string) *string {
	el := container.Find(selector).First()
	if el.Length() == 0 {
		return nil
	}
	v, ok := el.Attr(attribute)
	if !ok {
		return nil
	}
	return &v
}

// apiID resolves the synthetic per-item API id: id-selector's attribute or
// text, optionally refined through the plan's single-capture-group regex.
func apiID(container *goquery.Selection, plan *models.DetailAPIPlan, re *regexp.Regexp) *string {
	var raw *string
	if plan.IDAttribute != "" {
		raw = attrValue(container, plan.IDSelector, plan.IDAttribute)
	} else {
		raw = fieldValue(container, plan.IDSelector, "")
	}
	if raw == nil || *raw == "" {
		return nil
	}
	if re == nil {
		return raw
	}
	m := re.FindStringSubmatch(*raw)
	if len(m) < 2 || m[1] == "" {
		return nil
	}
	return &m[1]
}
