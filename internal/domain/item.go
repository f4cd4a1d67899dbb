package domain

import "time"

// Unknown is stored when a scraped field could not be extracted.
const Unknown = "unknown"

// ContentUnavailable is the body stored when no article text could be extracted.
const ContentUnavailable = "content unavailable"

// ItemType classifies where an item came from.
type ItemType string

const (
	ItemInbox ItemType = "inbox"
	ItemPatch ItemType = "patch"
	ItemNews  ItemType = "news"
)

// IsKernel reports whether the item came from the kernel mailing list.
func (t ItemType) IsKernel() bool {
	return t == ItemInbox || t == ItemPatch
}

// Item is one collected article or mailing-list message. Link is its identity.
type Item struct {
	Type   ItemType `json:"type"`
	Title  string   `json:"title"`
	Author string   `json:"author"`
	Date   string   `json:"date"`
	Body   string   `json:"body"`
	Link   string   `json:"link"`
	Source string   `json:"source"`
}

// Links returns the item links in order.
func Links(items []Item) []string {
	links := make([]string, len(items))
	for i, item := range items {
		links[i] = item.Link
	}
	return links
}

// Synthesis is the language-model output for a batch of items.
type Synthesis struct {
	Text       string
	References []string
}

// SourceCount is the number of items a single source contributed to a batch.
type SourceCount struct {
	Source string
	Items  int
}

// Digest is the payload handed to a notifier.
type Digest struct {
	Text          string
	References    []string
	Counts        []SourceCount
	BotChallenges int
	TotalItems    int
	Date          time.Time
}

// CountFor returns the item count for source or zero.
func (d Digest) CountFor(source string) int {
	for _, c := range d.Counts {
		if c.Source == source {
			return c.Items
		}
	}
	return 0
}

// Batch is the merged output of one scraping pass.
type Batch struct {
	Items     []Item
	Counts    []SourceCount
	Collected int // items before cross-source dedup
}

// Empty reports whether the batch carries no items.
func (b Batch) Empty() bool {
	return len(b.Items) == 0
}
