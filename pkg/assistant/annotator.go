package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// quoteWords is how many words of a cited quote are kept as a search hint.
const quoteWords = 6

// Annotator rewrites message annotations into numbered footnotes with a
// trailing reference list. File names are cached across calls.
type Annotator struct {
	files FileNamer
	names map[string]string
}

// NewAnnotator creates an Annotator that resolves file names through files.
func NewAnnotator(files FileNamer) *Annotator {
	return &Annotator{files: files, names: map[string]string{}}
}

// Annotate renders each message as footnoted text. The whole batch fails
// before any output is produced when a message has unsupported content or a
// file lookup fails.
func (a *Annotator) Annotate(ctx context.Context, messages []ThreadMessage) ([]string, error) {
	texts := make([]*TextContent, len(messages))
	for i, m := range messages {
		text, err := singleText(m)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}

	for _, text := range texts {
		if text == nil {
			continue
		}
		for _, ann := range text.Annotations {
			if err := a.resolve(ctx, ann); err != nil {
				return nil, err
			}
		}
	}

	out := make([]string, len(texts))
	for i, text := range texts {
		if text == nil {
			continue
		}
		out[i] = a.render(*text)
	}
	return out, nil
}

// singleText returns the only text block of m, or nil when m has no content.
func singleText(m ThreadMessage) (*TextContent, error) {
	switch {
	case len(m.Content) == 0:
		return nil, nil
	case len(m.Content) > 1:
		return nil, &UnsupportedError{
			MessageID: m.ID,
			Reason:    fmt.Sprintf("%d content blocks, expected one", len(m.Content)),
		}
	case m.Content[0].Text == nil:
		return nil, &UnsupportedError{
			MessageID: m.ID,
			Reason:    fmt.Sprintf("content block of type %q", m.Content[0].Type),
		}
	}
	return m.Content[0].Text, nil
}

func (a *Annotator) resolve(ctx context.Context, ann Annotation) error {
	if ann.Kind != AnnotationFileCitation && ann.Kind != AnnotationFilePath {
		return nil
	}
	if _, ok := a.names[ann.FileID]; ok {
		return nil
	}
	name, err := a.files.FileName(ctx, ann.FileID)
	if err != nil {
		return &TransportError{Op: "retrieve file " + ann.FileID, Err: err}
	}
	a.names[ann.FileID] = name
	return nil
}

func (a *Annotator) render(text TextContent) string {
	value := text.Value
	var refs []string
	for i, ann := range text.Annotations {
		value = replaceFirst(value, ann.Text, fmt.Sprintf(" [%d]", i))

		switch ann.Kind {
		case AnnotationFileCitation:
			refs = append(refs, fmt.Sprintf(`[%d] %s - (Search: "%s")`, i, a.names[ann.FileID], searchHint(ann.Quote)))
		case AnnotationFilePath:
			refs = append(refs, fmt.Sprintf("[%d] Click <here> to download %s", i, a.names[ann.FileID]))
		}
	}
	if len(refs) == 0 {
		return value
	}
	return value + "\n\n" + strings.Join(refs, "\n")
}

// replaceFirst swaps the first occurrence of old for marker. The marker's
// leading space is dropped when old starts the text or follows whitespace.
func replaceFirst(s, old, marker string) string {
	if old == "" {
		return s
	}
	idx := strings.Index(s, old)
	if idx < 0 {
		return s
	}
	if idx == 0 {
		marker = strings.TrimLeft(marker, " ")
	} else if r, _ := utf8.DecodeLastRuneInString(s[:idx]); unicode.IsSpace(r) {
		marker = strings.TrimLeft(marker, " ")
	}
	return s[:idx] + marker + s[idx+len(old):]
}

func searchHint(quote string) string {
	words := strings.Fields(quote)
	if len(words) > quoteWords {
		words = words[:quoteWords]
	}
	return strings.Join(words, " ")
}
