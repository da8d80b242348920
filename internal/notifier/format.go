package notifier

import (
	"strings"

	"examnotify/internal/feed"
)

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

var linkEscaper = strings.NewReplacer(
	`)`, `%29`,
	` `, `%20`,
)

// Format renders item as a legacy-Markdown channel post.
func Format(item feed.Item) string {
	icon := "🔔"
	if item.Kind == feed.KindResults {
		icon = "📊"
	}

	var b strings.Builder
	b.WriteString(icon)
	b.WriteString(" *")
	b.WriteString(item.Kind.Title())
	b.WriteString("* ")
	b.WriteString(icon)
	b.WriteString("\n\n📅 *Published on:* ")
	b.WriteString(escapeMarkdown(item.PublishDate))
	b.WriteString("\n\n")
	b.WriteString(escapeMarkdown(item.Content))
	if item.HasAttachment() {
		b.WriteString("\n\n📎 [Download PDF](")
		b.WriteString(linkEscaper.Replace(strings.TrimSpace(item.AttachmentLink)))
		b.WriteString(")")
	}
	return b.String()
}

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
