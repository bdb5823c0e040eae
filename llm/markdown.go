package llm

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter tuned for
// LLM input:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta, link,
//     input, textarea, HTML comments — all noise for the model.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: keeps table structure with minimal cell padding to save
//     tokens.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

var mdConverter = newMarkdownConverter()

// PrepareContent renders page HTML as Markdown and truncates it to the
// character budget. The domain resolves relative links so the Markdown is
// self-contained.
func PrepareContent(htmlContent, domain string, charBudget int) (string, error) {
	md, err := mdConverter.ConvertString(htmlContent, converter.WithDomain(domain))
	if err != nil {
		return "", err
	}
	return truncateRunes(md, charBudget), nil
}

// truncateRunes cuts s to at most n runes without splitting a multi-byte
// character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
