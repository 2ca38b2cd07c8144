// Package report renders the migration journal for humans.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joestump/dbsuffix/internal/db"
)

// Markdown renders runs as a GitHub-flavored Markdown table.
func Markdown(runs []db.Run) string {
	var b strings.Builder
	b.WriteString("# Migration history\n\n")
	if len(runs) == 0 {
		b.WriteString("No runs recorded.\n")
		return b.String()
	}

	b.WriteString("| Started | Operation | Folder | Directory | Files | Status | Error |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		errText := ""
		if r.Error != nil {
			errText = *r.Error
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s | %s |\n",
			r.StartedAt, r.Operation, code(r.Folder), code(r.Directory), r.Files, r.Status, cell(errText))
	}
	return b.String()
}

// HTML renders runs as an HTML fragment via goldmark.
func HTML(runs []db.Run) (string, error) {
	gm := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM, // tables
		),
	)
	var buf bytes.Buffer
	if err := gm.Convert([]byte(Markdown(runs)), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// cell keeps a value from breaking the table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// code wraps s in a code span fenced by one more backtick than the longest
// backtick run inside it.
func code(s string) string {
	s = cell(s)
	longest, run := 0, 0
	for _, c := range s {
		if c != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	fence := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return fence + s + fence
}
