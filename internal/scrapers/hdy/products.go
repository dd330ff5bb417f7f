package hdy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	unknownName     = "未知名称"
	missingButton   = "未找到按钮"
	soldOutText     = "售罄"
	disabledClass   = "disableButton"
	cardSelector    = "div[class*='-promotion-card']"
	rowSelector     = "div[class*='form-container']"
	titleSelector   = "div.form-title > h5"
	valueSelector   = "div[class*='form-content-data'] p[class*='form-text']"
	buttonSelector  = "a[class*='form-footer-butt']"
	priceSelector   = "span[class*='main-price-current']"
	renewalSelector = "span[class*='price-current-unit']"
)

// ParseProducts extracts every promotion card in document order. Pages without cards yield
// an empty list.
func ParseProducts(doc *goquery.Document) []Product {
	var products []Product
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		products = append(products, parseCard(card))
	})
	return products
}

func parseCard(card *goquery.Selection) Product {
	p := Product{Name: unknownName}

	name := card.Find("h1").First()
	if name.Length() > 0 {
		p.Name = strings.TrimSpace(name.Text())
	}

	price := card.Find(priceSelector).First()
	if price.Length() > 0 {
		p.Price = price.AttrOr("data-current", strings.TrimSpace(price.Text()))
	}
	p.RenewalInfo = strings.TrimSpace(card.Find(renewalSelector).First().Text())

	card.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		title := row.Find(titleSelector).First()
		value := row.Find(valueSelector).First()
		if title.Length() == 0 || value.Length() == 0 {
			return
		}

		label := strings.TrimSpace(title.Text())
		label = strings.ReplaceAll(label, "：", "")
		label = strings.ReplaceAll(label, ":", "")
		text := strings.TrimSpace(value.Text())

		switch label {
		case "核心":
			p.Core = text
		case "内存":
			p.Memory = text
		case "系统盘":
			p.SystemDisk = text
		case "带宽":
			p.Bandwidth = text
		}
	})

	button := card.Find(buttonSelector).First()
	if button.Length() == 0 {
		p.StatusMessage = missingButton
		return p
	}
	text := strings.TrimSpace(button.Text())
	class := button.AttrOr("class", "")
	p.StatusMessage = text
	p.Purchasable = !strings.Contains(class, disabledClass) && !strings.Contains(text, soldOutText)
	return p
}
