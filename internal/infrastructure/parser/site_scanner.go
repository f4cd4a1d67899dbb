package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudflare/ahocorasick"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
	"TuxLetter/internal/scanner"
)

// SiteScanner collects new items from one Site.
type SiteScanner struct {
	site       Site
	fetcher    *Fetcher
	cache      ports.LinkCache
	challenges *ahocorasick.Matcher
	logger     *slog.Logger
}

var _ scanner.Scanner = (*SiteScanner)(nil)

// NewSiteScanner binds a site to the shared fetcher and link cache.
func NewSiteScanner(site Site, fetcher *Fetcher, cache ports.LinkCache, log *slog.Logger) *SiteScanner {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &SiteScanner{
		site:    site,
		fetcher: fetcher,
		cache:   cache,
		logger:  log.With("scanner", site.Name),
	}
	if len(site.ChallengeMarkers) > 0 {
		s.challenges = ahocorasick.NewStringMatcher(site.ChallengeMarkers)
	}
	return s
}

// Name implements scanner.Scanner.
func (s *SiteScanner) Name() string {
	return s.site.Name
}

type candidate struct {
	href  string
	title string
}

// Scan fetches the listing, claims up to MaxItems new links and reads each of
// them. Transport and parse failures are logged and shrink the result; they
// are never returned.
func (s *SiteScanner) Scan(ctx context.Context) (scanner.Result, error) {
	s.logger.Info("scan started", "url", s.site.ListingURL)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.site.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.site.Delay), 1)
	}
	// the listing request takes the initial token
	limiter.Allow()

	raw, err := s.fetcher.Fetch(ctx, s.site.ListingURL)
	if err != nil {
		s.logger.Error("listing fetch failed", "url", s.site.ListingURL, "error", err)
		return scanner.Result{}, nil
	}

	if s.challenged(raw) {
		s.logger.Warn("bot verification page detected, skipping source", "url", s.site.ListingURL)
		return scanner.Result{BotChallenges: 1}, nil
	}

	candidates, err := s.candidates(raw)
	if err != nil {
		s.logger.Error("listing parse failed", "url", s.site.ListingURL, "error", err)
		return scanner.Result{}, nil
	}
	if len(candidates) == 0 {
		s.logger.Warn("no candidate links on listing", "url", s.site.ListingURL)
		return scanner.Result{}, nil
	}

	titles := make(map[string]string, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := titles[c.href]; dup {
			continue
		}
		titles[c.href] = c.title
		unique = append(unique, c.href)
	}

	claimed, fresh := s.cache.Claim(unique, s.site.maxItems())
	s.logger.Info("listing links processed",
		"total", len(candidates),
		"unique", len(unique),
		"new", fresh,
		"cached", len(unique)-fresh,
		"claimed", len(claimed))

	if len(claimed) == 0 {
		s.logger.Info("no new links")
		return scanner.Result{}, nil
	}

	items := make([]domain.Item, 0, len(claimed))
	for _, link := range claimed {
		if err := limiter.Wait(ctx); err != nil {
			s.logger.Warn("scan interrupted", "error", err)
			break
		}

		item, err := s.scanArticle(ctx, link, titles[link])
		if err != nil {
			s.logger.Error("article scan failed", "url", link, "error", err)
			continue
		}
		items = append(items, item)
		s.logger.Debug("item collected",
			"title", truncate(item.Title, 50),
			"author", item.Author,
			"type", item.Type)
	}

	s.logger.Info("scan finished", "items", len(items))
	return scanner.Result{Items: items}, nil
}

func (s *SiteScanner) challenged(raw []byte) bool {
	return s.challenges != nil && len(s.challenges.Match(raw)) > 0
}

func (s *SiteScanner) candidates(raw []byte) ([]candidate, error) {
	base, err := url.Parse(s.site.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	var found []candidate
	add := func(href, title string) {
		title = collapse(title)
		href = strings.TrimSpace(href)
		if href == "" || title == "" || runeLen(title) < s.site.MinTitleLen {
			return
		}
		for _, exclude := range s.site.HrefExcludes {
			if strings.Contains(href, exclude) {
				return
			}
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		found = append(found, candidate{href: abs.String(), title: title})
	}

	if s.site.Listing == ListingFeed {
		feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse feed: %w", err)
		}
		for _, entry := range feed.Items {
			add(entry.Link, entry.Title)
		}
		return found, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	doc.Find(s.site.LinkSelector).Each(func(_ int, a *goquery.Selection) {
		if s.site.ExcludeWithin != "" && a.Closest(s.site.ExcludeWithin).Length() > 0 {
			return
		}
		href, _ := a.Attr("href")
		add(href, a.Text())
	})
	return found, nil
}

func (s *SiteScanner) scanArticle(ctx context.Context, link, listingTitle string) (domain.Item, error) {
	raw, err := s.fetcher.Fetch(ctx, link)
	if err != nil {
		return domain.Item{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return domain.Item{}, fmt.Errorf("parse article: %w", err)
	}

	var detail Detail
	if s.site.Detail != nil {
		detail = s.site.Detail.Extract(doc)
	}

	body := detail.Body
	if body == "" {
		body = readableText(raw, link)
	}

	return domain.Item{
		Type:   s.site.classify(listingTitle),
		Title:  firstNonEmpty(detail.Title, listingTitle, domain.Unknown),
		Author: firstNonEmpty(detail.Author, s.site.DefaultAuthor, domain.Unknown),
		Date:   firstNonEmpty(detail.Date, domain.Unknown),
		Body:   firstNonEmpty(body, domain.ContentUnavailable),
		Link:   link,
		Source: s.site.Name,
	}, nil
}

// readableText runs the readability heuristics over a page whose body the
// selectors missed.
func readableText(raw []byte, link string) string {
	pageURL, err := url.Parse(link)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
