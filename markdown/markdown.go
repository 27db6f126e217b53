// Package markdown renders the markdown bodies of CMS posts to sanitized
// HTML. The supported subset is what authors use in the CMS editor:
// headings, paragraphs, lists, quotes, code fences, tables, rules, links and
// images, with bold, italic and inline code.
package markdown

import (
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`\b_([^_]+)_\b`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reImage            = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reOrderedItem      = regexp.MustCompile(`^\d+\.\s`)
	reHeading          = regexp.MustCompile(`^(#{1,4})\s+(.*)$`)
)

// policy strips anything the renderer would not produce itself, including
// raw HTML an author pasted into the editor.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("loading", "decoding").OnElements("img")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w-]+$`)).OnElements("code")
	p.RequireNoFollowOnLinks(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// ToHTML renders md as sanitized HTML.
func ToHTML(md string) string {
	r := &renderer{}
	r.render(md)
	return policy.Sanitize(r.buf.String())
}

// Component returns a templ.Component that writes ToHTML(md).
func Component(md string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, ToHTML(md))
		return err
	})
}

type block int

const (
	blockNone block = iota
	blockPara
	blockList
	blockOrdered
	blockQuote
	blockTable
)

var closeTags = map[block]string{
	blockPara:    "</p>",
	blockList:    "</ul>",
	blockOrdered: "</ol>",
	blockQuote:   "</blockquote>",
}

type renderer struct {
	buf       strings.Builder
	open      block
	inCode    bool
	tableBody bool
	images    int
}

// enter closes the open block unless it is b, and reports whether b was
// already open.
func (r *renderer) enter(b block) bool {
	if r.open == b {
		return true
	}
	r.close()
	r.open = b
	return false
}

func (r *renderer) close() {
	switch r.open {
	case blockNone:
	case blockTable:
		if r.tableBody {
			r.buf.WriteString("</tbody>")
		}
		r.buf.WriteString("</table>")
		r.tableBody = false
	default:
		r.buf.WriteString(closeTags[r.open])
	}
	r.open = blockNone
}

func (r *renderer) render(md string) {
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimRight(raw, "\r")

		if strings.HasPrefix(line, "```") {
			r.fence(strings.TrimSpace(line[3:]))
			continue
		}
		if r.inCode {
			r.buf.WriteString(html.EscapeString(line))
			r.buf.WriteByte('\n')
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			r.close()
			continue
		}

		switch {
		case trimmed == "---" || trimmed == "***":
			r.close()
			r.buf.WriteString("<hr/>")
		case reHeading.MatchString(line):
			m := reHeading.FindStringSubmatch(line)
			r.close()
			level := strconv.Itoa(len(m[1]))
			r.buf.WriteString("<h" + level + ">" + r.inline(m[2]) + "</h" + level + ">")
		case strings.HasPrefix(trimmed, "|"):
			r.tableRow(trimmed)
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			if !r.enter(blockList) {
				r.buf.WriteString("<ul>")
			}
			r.buf.WriteString("<li>" + r.inline(line[2:]) + "</li>")
		case reOrderedItem.MatchString(line):
			if !r.enter(blockOrdered) {
				r.buf.WriteString("<ol>")
			}
			r.buf.WriteString("<li>" + r.inline(reOrderedItem.ReplaceAllString(line, "")) + "</li>")
		case strings.HasPrefix(line, ">"):
			if r.enter(blockQuote) {
				r.buf.WriteByte(' ')
			} else {
				r.buf.WriteString("<blockquote>")
			}
			r.buf.WriteString(r.inline(strings.TrimPrefix(line, ">")))
		default:
			if r.enter(blockPara) {
				r.buf.WriteByte(' ')
			} else {
				r.buf.WriteString("<p>")
			}
			r.buf.WriteString(r.inline(trimmed))
		}
	}
	if r.inCode {
		r.fence("")
	}
	r.close()
}

func (r *renderer) fence(lang string) {
	if r.inCode {
		r.buf.WriteString("</code></pre>")
		r.inCode = false
		return
	}
	r.close()
	if lang != "" {
		r.buf.WriteString(`<pre><code class="language-` + html.EscapeString(lang) + `">`)
	} else {
		r.buf.WriteString("<pre><code>")
	}
	r.inCode = true
}

func (r *renderer) tableRow(line string) {
	cells := tableCells(line)
	if !r.enter(blockTable) {
		r.buf.WriteString("<table><thead><tr>")
		for _, c := range cells {
			r.buf.WriteString("<th>" + r.inline(c) + "</th>")
		}
		r.buf.WriteString("</tr></thead>")
		return
	}
	if !r.tableBody {
		r.buf.WriteString("<tbody>")
		r.tableBody = true
	}
	if isSeparatorRow(cells) {
		return
	}
	r.buf.WriteString("<tr>")
	for _, c := range cells {
		r.buf.WriteString("<td>" + r.inline(c) + "</td>")
	}
	r.buf.WriteString("</tr>")
}

func tableCells(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

// inline applies inline formatting to one line of text. The text is escaped
// first; every tag after that is produced here.
func (r *renderer) inline(s string) string {
	out := html.EscapeString(strings.TrimSpace(s))

	// Inline code is swapped for placeholders so emphasis never applies
	// inside it.
	var code []string
	out = reInlineCode.ReplaceAllStringFunc(out, func(m string) string {
		code = append(code, "<code>"+reInlineCode.FindStringSubmatch(m)[1]+"</code>")
		return "\x00" + strconv.Itoa(len(code)-1) + "\x00"
	})

	out = reImage.ReplaceAllStringFunc(out, func(m string) string {
		match := reImage.FindStringSubmatch(m)
		src := SafeURL(match[2])
		if src == "" {
			return match[1]
		}
		r.images++
		loading := "lazy"
		if r.images == 1 {
			loading = "eager"
		}
		return `<img alt="` + match[1] + `" src="` + src + `" loading="` + loading + `" decoding="async"/>`
	})
	out = reLink.ReplaceAllStringFunc(out, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		return `<a href="` + href + `">` + match[1] + `</a>`
	})

	out = outsideTags(out, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reBoldUnderscore.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "<em>$1</em>")
		seg = reItalicUnderscore.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})

	for i, c := range code {
		out = strings.Replace(out, "\x00"+strconv.Itoa(i)+"\x00", c, 1)
	}
	return out
}

// outsideTags applies fn to the text between HTML tags only, so emphasis
// patterns never rewrite attribute values such as URLs.
func outsideTags(s string, fn func(string) string) string {
	var b strings.Builder
	for s != "" {
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			b.WriteString(fn(s))
			break
		}
		b.WriteString(fn(s[:lt]))
		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			b.WriteString(s[lt:])
			break
		}
		b.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return b.String()
}

// SafeURL returns raw escaped for an attribute, or "" when it is not a
// relative, http(s), mailto or tel URL.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	u, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	}
	return ""
}

var reMarkup = regexp.MustCompile("[*_`#>|]+")

// PlainText strips markdown syntax, leaving readable text for feeds and
// meta descriptions.
func PlainText(md string) string {
	md = reImage.ReplaceAllString(md, "$1")
	md = reLink.ReplaceAllString(md, "$1")
	var lines []string
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") || line == "---" {
			continue
		}
		line = strings.TrimPrefix(line, "- ")
		line = reOrderedItem.ReplaceAllString(line, "")
		line = strings.TrimSpace(reMarkup.ReplaceAllString(line, ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

// ReadingTime estimates minutes to read md at 200 words per minute, at
// least 1.
func ReadingTime(md string) int {
	words := len(strings.Fields(PlainText(md)))
	minutes := (words + 199) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}
