package source

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"examnotify/internal/feed"
)

const (
	headingRowClass = "tableHeading"
	itemRowClass    = "displayList"
	publishedPrefix = "Published on"
)

// Extract parses a listing page and returns the items under the first date
// heading, in page order. Relative attachment links resolve against base.
// A page with no rows at all yields no items and no error.
func Extract(raw []byte, kind feed.Kind, base *url.URL) ([]feed.Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &feed.ParseError{Kind: kind, Err: fmt.Errorf("parse html: %w", err)}
	}

	var (
		items      []feed.Item
		date       string
		inGroup    bool
		sawHeading bool
		sawRows    bool
	)
	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		switch {
		case row.HasClass(headingRowClass):
			if sawHeading {
				// second heading: the most recent group is complete
				return false
			}
			sawHeading, inGroup = true, true
			date = headingDate(row)
		case row.HasClass(itemRowClass):
			sawRows = true
			if !inGroup {
				return true
			}
			cells := row.Find("td")
			content := collapseSpace(cells.Eq(1).Text())
			if content == "" {
				return true
			}
			items = append(items, feed.Item{
				Content:        content,
				PublishDate:    date,
				AttachmentLink: attachmentLink(cells.Eq(2), base),
				Kind:           kind,
			})
		}
		return true
	})

	if sawRows && !sawHeading {
		return nil, &feed.ParseError{Kind: kind, Err: feed.ErrNoHeading}
	}
	return items, nil
}

func headingDate(row *goquery.Selection) string {
	text := row.Find("td").First().Text()
	return collapseSpace(strings.Replace(text, publishedPrefix, "", 1))
}

func attachmentLink(cell *goquery.Selection, base *url.URL) string {
	href, ok := cell.Find("a[href]").First().Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}

// collapseSpace trims s and folds inner whitespace runs (including NBSP) to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
