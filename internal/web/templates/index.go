// Package templates renders the HTML pages served next to the API.
//
// Components are plain templ.Component values so they compose with any
// templ-generated markup added later.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// ProjectRow is one line of the project list.
type ProjectRow struct {
	ID         int64
	Name       string
	Files      int
	Variables  int
	Favourite  bool
	LastOpened string
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AstroAPI</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;width:100%}
th,td{padding:.4rem .8rem;border-bottom:1px solid #d9e2ec;text-align:left}
.fav{color:#d69e2e}
.empty{color:#829ab1}
</style>
</head>
<body>
<h1>AstroAPI</h1>
`

const pageFoot = `</body>
</html>
`

// Index renders the project list.
func Index(rows []ProjectRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(pageHead)

		if len(rows) == 0 {
			b.WriteString(`<p class="empty">No projects yet. Create one with POST /api/projects.</p>` + "\n")
		} else {
			b.WriteString("<table>\n<thead><tr><th></th><th>Project</th><th>Files</th><th>Variables</th><th>Last opened</th></tr></thead>\n<tbody>\n")
			for _, row := range rows {
				if err := ctx.Err(); err != nil {
					return err
				}
				writeRow(&b, row)
			}
			b.WriteString("</tbody>\n</table>\n")
		}

		b.WriteString(pageFoot)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeRow(b *strings.Builder, row ProjectRow) {
	star := ""
	if row.Favourite {
		star = `<span class="fav">&#9733;</span>`
	}
	opened := row.LastOpened
	if opened == "" {
		opened = "never"
	}
	fmt.Fprintf(b, `<tr id="project-%s"><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%s</td></tr>`+"\n",
		strconv.FormatInt(row.ID, 10),
		star,
		templ.EscapeString(row.Name),
		row.Files,
		row.Variables,
		templ.EscapeString(opened),
	)
}
