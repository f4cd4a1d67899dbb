package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TuxLetter/internal/domain"
)

// ListingKind tells the scanner how to read a listing page.
type ListingKind string

const (
	ListingHTML ListingKind = "html"
	ListingFeed ListingKind = "feed"
)

const defaultMaxItems = 5

// Site describes one source declaratively. A SiteScanner turns it into items.
type Site struct {
	Name       string
	BaseURL    string
	ListingURL string
	Listing    ListingKind

	// LinkSelector picks the anchors of the listing page. Ignored for feeds.
	LinkSelector string
	// HrefExcludes rejects candidates whose href contains any of the values.
	HrefExcludes []string
	// ExcludeWithin rejects anchors nested inside matching ancestors.
	ExcludeWithin string
	// MinTitleLen is the shortest listing title kept, in runes.
	MinTitleLen int

	DefaultAuthor string
	Classify      func(listingTitle string) domain.ItemType
	Detail        DetailExtractor

	// ChallengeMarkers are byte patterns that identify an anti-bot page.
	ChallengeMarkers []string
	Delay            time.Duration
	MaxItems         int
}

func (s Site) maxItems() int {
	if s.MaxItems <= 0 {
		return defaultMaxItems
	}
	return s.MaxItems
}

func (s Site) classify(title string) domain.ItemType {
	if s.Classify == nil {
		return domain.ItemNews
	}
	return s.Classify(title)
}

// Detail holds the fields pulled from an article page. Empty means not found.
type Detail struct {
	Title  string
	Author string
	Date   string
	Body   string
}

// DetailExtractor reads the fields of an article page.
type DetailExtractor interface {
	Extract(doc *goquery.Document) Detail
}

// Rule reads the text of the first node matching Selector, or its Attr when set.
type Rule struct {
	Selector string
	Attr     string
}

func (r Rule) extract(doc *goquery.Document) string {
	sel := doc.Find(r.Selector).First()
	if sel.Length() == 0 {
		return ""
	}
	if r.Attr != "" {
		value, _ := sel.Attr(r.Attr)
		return collapse(value)
	}
	return collapse(sel.Text())
}

// Cascade tries rules in order; the first non-empty value wins.
type Cascade []Rule

func (c Cascade) extract(doc *goquery.Document) string {
	for _, rule := range c {
		if value := rule.extract(doc); value != "" {
			return value
		}
	}
	return ""
}

// Rules builds a cascade of text rules, one per selector.
func Rules(selectors ...string) Cascade {
	out := make(Cascade, 0, len(selectors))
	for _, selector := range selectors {
		out = append(out, Rule{Selector: selector})
	}
	return out
}

// SelectorExtractor reads news articles through selector cascades.
type SelectorExtractor struct {
	Title  Cascade
	Author Cascade
	Date   Cascade
	// Paragraphs selects body paragraphs, joined with a blank line.
	Paragraphs string
	// MinParagraphLen drops paragraphs of this many runes or fewer.
	MinParagraphLen int
}

func (e SelectorExtractor) Extract(doc *goquery.Document) Detail {
	var paragraphs []string
	doc.Find(e.Paragraphs).Each(func(_ int, p *goquery.Selection) {
		text := collapse(p.Text())
		if text == "" || runeLen(text) <= e.MinParagraphLen {
			return
		}
		paragraphs = append(paragraphs, text)
	})

	return Detail{
		Title:  e.Title.extract(doc),
		Author: e.Author.extract(doc),
		Date:   e.Date.extract(doc),
		Body:   strings.Join(paragraphs, "\n\n"),
	}
}

// HeaderExtractor reads mail archive pages, where Subject/From/Date are
// label nodes followed by their value.
type HeaderExtractor struct {
	Body string
}

func (e HeaderExtractor) Extract(doc *goquery.Document) Detail {
	body := ""
	if pre := doc.Find(e.Body).First(); pre.Length() > 0 {
		body = strings.TrimSpace(pre.Text())
	}
	return Detail{
		Title:  headerValue(doc, "Subject:"),
		Author: headerValue(doc, "From:"),
		Date:   headerValue(doc, "Date:"),
		Body:   body,
	}
}

// headerValue finds the leaf element whose text is label and reads the node
// that follows it. When the sibling is empty it falls back to the parent text
// with the label stripped.
func headerValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("*").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if node.Children().Length() > 0 || collapse(node.Text()) != label {
			return true
		}
		value = siblingText(node)
		if value == "" {
			value = collapse(strings.Replace(firstLine(node.Parent().Text(), label), label, "", 1))
		}
		return value == ""
	})
	return value
}

func siblingText(label *goquery.Selection) string {
	var value string
	passed := false
	label.Parent().Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if !passed {
			passed = node.IsSelection(label)
			return true
		}
		value = collapse(firstLine(node.Text(), ""))
		return value == ""
	})
	return value
}

// firstLine returns the line of text containing anchor, or the first
// non-blank line when anchor is empty.
func firstLine(text, anchor string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if anchor == "" || strings.Contains(line, anchor) {
			return line
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
