package llm

import (
	"fmt"
	"strings"

	"TuxLetter/internal/domain"
)

const (
	kernelSectionHeader = "=== LINUX KERNEL MAILING LIST (lore.kernel.org) ==="
	newsSectionHeader   = "=== GENERAL NEWS (Phoronix, Linux.com, It's FOSS) ==="
	defaultLanguage     = "English"
)

// buildPrompt lays out kernel messages first and general news second, each
// item clipped to bodyLimit runes of content.
func buildPrompt(items []domain.Item, language string, bodyLimit int) string {
	if language == "" {
		language = defaultLanguage
	}

	var kernel, news []domain.Item
	for _, item := range items {
		if item.Type.IsKernel() {
			kernel = append(kernel, item)
		} else {
			news = append(news, item)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert on Linux and open-source technology. Read every item below and write one synthesized text in %s.\n", language)
	writeSection(&b, kernelSectionHeader, "MESSAGE", kernel, bodyLimit)
	writeSection(&b, newsSectionHeader, "NEWS", news, bodyLimit)

	fmt.Fprintf(&b, `
Tasks:
1. Write flowing prose in %[1]s that synthesizes all of the items
2. Group by theme where possible (kernel patches, general news, etc.)
3. Translate and summarize the technical content clearly
4. Focus on what matters most to the Linux community
5. Keep an informative, technical tone
6. IMPORTANT: cover both the kernel mailing list messages and the news articles

Response format:
Only the synthesized text, with no headings or section dividers.
`, language)
	return b.String()
}

func writeSection(b *strings.Builder, header, label string, items []domain.Item, bodyLimit int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", header)
	for i, item := range items {
		fmt.Fprintf(b, "\n%s %d:\nTYPE: %s\nTITLE: %s\nAUTHOR: %s\nDATE: %s\nCONTENT: %s\nLINK: %s\n---\n",
			label, i+1, item.Type, item.Title, item.Author, item.Date, clip(item.Body, bodyLimit), item.Link)
	}
}

func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
