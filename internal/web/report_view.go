package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/a-h/templ"
)

// reportPage renders the error report of a batch as a standalone page.
func reportPage(rep *core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		fmt.Fprintf(&b, "<title>Import errors %s</title>", templ.EscapeString(rep.BatchID))
		b.WriteString("</head><body><main>")
		fmt.Fprintf(&b, "<h1>Rows not imported</h1><p>Batch <code>%s</code> %s with %d failed rows.</p>",
			templ.EscapeString(rep.BatchID), templ.EscapeString(string(rep.Status)), len(rep.Entries))

		if len(rep.Entries) > 0 {
			b.WriteString("<table><thead><tr>")
			for _, h := range rep.Header() {
				fmt.Fprintf(&b, "<th>%s</th>", templ.EscapeString(h))
			}
			b.WriteString("</tr></thead><tbody>")
			for _, rec := range rep.Records() {
				b.WriteString("<tr>")
				for _, cell := range rec {
					fmt.Fprintf(&b, "<td>%s</td>", templ.EscapeString(cell))
				}
				b.WriteString("</tr>")
			}
			b.WriteString("</tbody></table>")
		}

		b.WriteString("</main></body></html>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// errorAlert renders a user message as an HTML fragment.
func errorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div role="alert" class="error"><p>%s</p><p>%s</p><small>Code: %s</small></div>`,
			templ.EscapeString(msg.Message),
			templ.EscapeString(msg.Action),
			templ.EscapeString(msg.Code),
		)
		return err
	})
}
