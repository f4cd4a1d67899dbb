package parser

import (
	"strings"
	"time"

	"TuxLetter/internal/domain"
)

const (
	newsDelay = time.Second
	loreDelay = 1500 * time.Millisecond

	loreChallengeMarker = "Making sure you're not a bot!"
)

// LoreSite reads the LKML archive on lore.kernel.org.
func LoreSite() Site {
	return Site{
		Name:         "lore",
		BaseURL:      "https://lore.kernel.org",
		ListingURL:   "https://lore.kernel.org/lkml/",
		Listing:      ListingHTML,
		LinkSelector: "tbody tr td:first-child a",
		HrefExcludes: []string{"archive"},
		MinTitleLen:  1,
		Classify: func(title string) domain.ItemType {
			if strings.Contains(title, "[PATCH]") {
				return domain.ItemPatch
			}
			return domain.ItemInbox
		},
		Detail:           HeaderExtractor{Body: "pre"},
		ChallengeMarkers: []string{loreChallengeMarker},
		Delay:            loreDelay,
		MaxItems:         defaultMaxItems,
	}
}

// PhoronixSite reads the Phoronix front page.
func PhoronixSite() Site {
	return Site{
		Name:          "phoronix",
		BaseURL:       "https://www.phoronix.com",
		ListingURL:    "https://www.phoronix.com",
		Listing:       ListingHTML,
		LinkSelector:  `a[href*="/news/"]`,
		HrefExcludes:  []string{"rss"},
		ExcludeWithin: ".sidebar",
		MinTitleLen:   11,
		DefaultAuthor: "Phoronix",
		Detail: SelectorExtractor{
			Title:      Rules("h1"),
			Author:     Rules(".author", ".byline", `[class*="author"]`),
			Date:       append(Rules(".date", ".published", "time"), Rule{Selector: "[datetime]", Attr: "datetime"}),
			Paragraphs: "article p, .content p",
		},
		Delay:    newsDelay,
		MaxItems: defaultMaxItems,
	}
}

// LinuxComSite reads the Linux.com news section.
func LinuxComSite() Site {
	return Site{
		Name:          "linuxcom",
		BaseURL:       "https://www.linux.com",
		ListingURL:    "https://www.linux.com/news/",
		Listing:       ListingHTML,
		LinkSelector:  ".post-title a, .entry-title a, h2 a, h3 a",
		MinTitleLen:   11,
		DefaultAuthor: "Linux.com",
		Detail: SelectorExtractor{
			Title:           Rules("h1", ".entry-title", ".post-title"),
			Author:          Rules(".author", ".byline", `[rel="author"]`),
			Date:            append(Rules(".published", ".date", "time[datetime]"), Rule{Selector: "time[datetime]", Attr: "datetime"}),
			Paragraphs:      "article p, .entry-content p, .post-content p",
			MinParagraphLen: 20,
		},
		Delay:    newsDelay,
		MaxItems: defaultMaxItems,
	}
}

// ItsFOSSSite reads It's FOSS News.
func ItsFOSSSite() Site {
	return Site{
		Name:          "itsfoss",
		BaseURL:       "https://news.itsfoss.com",
		ListingURL:    "https://news.itsfoss.com",
		Listing:       ListingHTML,
		LinkSelector:  ".post-card-title a, .entry-title a, h2 a, h3 a",
		MinTitleLen:   11,
		DefaultAuthor: "Its FOSS",
		Detail: SelectorExtractor{
			Title:           Rules("h1", ".post-title", ".entry-title"),
			Author:          Rules(".author-name", ".byline", `[rel="author"]`),
			Date:            append(Rules(".published-date", ".post-date", "time"), Rule{Selector: "time[datetime]", Attr: "datetime"}),
			Paragraphs:      "article p, .post-content p, .entry-content p",
			MinParagraphLen: 20,
		},
		Delay:    newsDelay,
		MaxItems: defaultMaxItems,
	}
}

// DefaultSites returns the built-in sources in registration order.
func DefaultSites() []Site {
	return []Site{LoreSite(), PhoronixSite(), LinuxComSite(), ItsFOSSSite()}
}
