package threading

import (
	"fmt"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"

	"threadmail/utils"
)

// Report renders a human-readable summary of a batch analysis in the given
// locale: each retained thread with its root marked, then the standalone and
// original/reply counts.
func Report(analysis *Analysis, localizer *i18n.Localizer) string {
	var b strings.Builder

	b.WriteString(utils.T(localizer, "report_title"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n")

	grouped := make(map[string]bool)
	for _, group := range analysis.Threads {
		b.WriteString("\n")
		b.WriteString(utils.TWithData(localizer, "report_thread", map[string]interface{}{
			"ThreadID": group.ThreadID,
			"Count":    group.Size(),
		}))
		b.WriteString("\n")
		for _, msg := range group.Messages {
			mark := "   "
			if msg.IsThreadRoot {
				mark = " * "
			}
			fmt.Fprintf(&b, "%s%s\n", mark, msg.SourceLocator)
			fmt.Fprintf(&b, "      %s\n", msg.SubjectNormalized)
			grouped[msg.MessageID] = true
		}
	}

	singles := 0
	for _, rec := range analysis.Records {
		if !grouped[rec.MessageID] {
			singles++
		}
	}

	b.WriteString("\n")
	b.WriteString(utils.TWithData(localizer, "report_singles", map[string]interface{}{
		"Count": singles,
	}))
	b.WriteString("\n")
	b.WriteString(utils.TWithData(localizer, "report_originals", map[string]interface{}{
		"Originals": len(analysis.Originals),
		"Replies":   len(analysis.Records) - len(analysis.Originals),
	}))
	b.WriteString("\n")

	return b.String()
}
