package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/erkineren/listing-monitor/internal/models"
)

const (
	noPrice = "No price"
	noArea  = "No area"
)

// Parse extracts one listing per <article> that has an <h2> heading with
// a link. Relative links are resolved against base and fragments dropped,
// so the same flat always yields the same Link. A page without a single
// usable article is a FetchError, never an empty batch.
func Parse(markup string, base *url.URL) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &FetchError{Reason: ReasonTransport, Err: fmt.Errorf("parse markup: %w", err)}
	}

	articles := doc.Find("article")
	if articles.Length() == 0 {
		return nil, &FetchError{Reason: ReasonNoMatchingElements, Err: errors.New("no <article> elements on page")}
	}

	var listings []models.Listing
	articles.Each(func(_ int, article *goquery.Selection) {
		l, ok := parseArticle(article, base)
		if ok {
			listings = append(listings, l)
		}
	})

	if len(listings) == 0 {
		return nil, &FetchError{
			Reason: ReasonNoMatchingElements,
			Err:    fmt.Errorf("%d articles found but none had a heading link", articles.Length()),
		}
	}

	return listings, nil
}

func parseArticle(article *goquery.Selection, base *url.URL) (models.Listing, bool) {
	h2 := article.Find("h2").First()
	if h2.Length() == 0 {
		return models.Listing{}, false
	}

	// Icons (photo count, badges) live in <i> tags inside the heading.
	h2.Find("i").Remove()

	heading := cleanText(h2.Text())
	href, ok := h2.Find("a[href]").First().Attr("href")
	if !ok || heading == "" {
		return models.Listing{}, false
	}

	link, err := normalizeLink(href, base)
	if err != nil {
		return models.Listing{}, false
	}

	return models.Listing{
		Heading: heading,
		Price:   textOr(article.Find("div.price").First(), noPrice),
		Area:    textOr(article.Find("div.area").First(), noArea),
		Link:    link,
	}, true
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	if text := cleanText(sel.Text()); text != "" {
		return text
	}
	return fallback
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeLink(href string, base *url.URL) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported link scheme %q", abs.Scheme)
	}
	abs.Fragment = ""
	abs.RawFragment = ""

	return abs.String(), nil
}
