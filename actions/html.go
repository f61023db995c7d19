package actions

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	mdOnce      sync.Once
	mdConverter *converter.Converter
	mdSanitizer *bluemonday.Policy
)

// htmlToMarkdown converts page or job-description HTML to markdown,
// sanitising script/style/event-handler content first. Returns "" when
// nothing readable remains.
func htmlToMarkdown(html string) string {
	mdOnce.Do(func() {
		mdSanitizer = bluemonday.UGCPolicy()
		mdConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	})

	clean := mdSanitizer.Sanitize(html)
	md, err := mdConverter.ConvertString(clean)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}
