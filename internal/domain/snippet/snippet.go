// Package snippet implements SearchSnippet/get (spec §6): given a list
// of email ids and the filter a prior Email/query ran, it re-fetches
// those emails' subject/body text via the uniform Email/get verb and
// returns an HTML-escaped preview window around the first matching
// search term, with each match wrapped in a highlight marker.
package snippet

import (
	"context"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/verb"
)

const previewWindow = 200

// EmailGetter is the narrow view of Email this package needs.
type EmailGetter interface {
	verb.Capability
}

// Args binds a SearchSnippet/get call's arguments.
type Args struct {
	AccountId       string
	EmailIds        []string
	Filter          *query.Filter
	CollapseThreads bool
}

// Snippet is one SearchSnippet/get result entry.
type Snippet struct {
	EmailId string
	Subject string
	Preview string
}

// Get fetches subject/textBody for every id in args.EmailIds and builds
// a highlighted preview around the first filter term each contains.
func Get(ctx context.Context, emails EmailGetter, args Args) ([]Snippet, []string, *verb.VerbError) {
	terms := query.CollectTextTerms(args.Filter, "text", "subject", "body")

	result, verr := verb.Get(ctx, emails, verb.GetArgs{
		AccountId:  args.AccountId,
		Ids:        args.EmailIds,
		Properties: []string{"subject", "textBody", "preview", "threadId"},
	})
	if verr != nil {
		return nil, nil, verr
	}

	seenThreads := make(map[string]bool)
	snippets := make([]Snippet, 0, len(result.List))
	for _, obj := range result.List {
		threadId, _ := obj["threadId"].(string)
		if args.CollapseThreads && threadId != "" {
			if seenThreads[threadId] {
				continue
			}
			seenThreads[threadId] = true
		}
		id, _ := obj["id"].(string)
		subject, _ := obj["subject"].(string)
		body, _ := obj["textBody"].(string)
		snippets = append(snippets, Snippet{
			EmailId: id,
			Subject: highlightAndEscape(subject, terms),
			Preview: highlightAndEscape(previewOf(body, terms), terms),
		})
	}
	return snippets, result.NotFound, nil
}

// previewOf returns a window of at most previewWindow characters from
// body, centered on the earliest occurrence of any term, or the first
// previewWindow characters if no term is found.
func previewOf(body string, terms []string) string {
	pos, matchLen := earliestMatch(body, terms)
	if pos == -1 {
		return truncate(body, previewWindow)
	}

	half := (previewWindow - matchLen) / 2
	if half < 0 {
		half = 0
	}
	start := pos - half
	if start < 0 {
		start = 0
	}
	end := start + previewWindow
	if end > len(body) {
		end = len(body)
		start = end - previewWindow
		if start < 0 {
			start = 0
		}
	}
	return body[start:end]
}

func earliestMatch(body string, terms []string) (pos, matchLen int) {
	pos = -1
	lower := strings.ToLower(body)
	for _, term := range terms {
		if term == "" {
			continue
		}
		idx := strings.Index(lower, strings.ToLower(term))
		if idx != -1 && (pos == -1 || idx < pos) {
			pos = idx
			matchLen = len(term)
		}
	}
	return pos, matchLen
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// highlightAndEscape walks text, HTML-escaping every character while
// wrapping case-insensitive matches of any term in <mark>...</mark>.
func highlightAndEscape(text string, terms []string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	var out strings.Builder
	i := 0
	for i < len(text) {
		matched := matchTermAt(lower, i, terms)
		if matched > 0 {
			out.WriteString("<mark>")
			out.WriteString(html.EscapeString(text[i : i+matched]))
			out.WriteString("</mark>")
			i += matched
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		out.WriteString(html.EscapeString(string(r)))
		i += size
	}
	return out.String()
}

// matchTermAt returns the byte length of the longest term matching
// lower at position i, or 0 if none match.
func matchTermAt(lower string, i int, terms []string) int {
	best := 0
	for _, term := range terms {
		term = strings.ToLower(term)
		if term == "" {
			continue
		}
		if strings.HasPrefix(lower[i:], term) && len(term) > best {
			best = len(term)
		}
	}
	return best
}
