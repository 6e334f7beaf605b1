// Package document turns fetched content into clean plain text and splits it
// into overlapping chunks.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/domenicocinque/web-rag/internal/domain"
)

var (
	ErrNotFetched         = errors.New("content was not fetched")
	ErrEmptyDocument      = errors.New("document has no text")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// skippedElements never contribute text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"form": true, "button": true, "select": true, "svg": true,
	"iframe": true, "canvas": true, "head": true,
}

// blockElements break the text flow onto a new line.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"tr": true, "table": true, "pre": true, "blockquote": true, "br": true,
	"figcaption": true, "hr": true, "td": true, "th": true,
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts every fetched item it can. Failed fetches and
// conversion errors are logged and dropped.
func (n *Normalizer) Normalize(ctx context.Context, raws []domain.RawContent) []domain.Document {
	docs := make([]domain.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := n.Convert(raw)
		if err != nil {
			if !errors.Is(err, ErrNotFetched) {
				ctxzap.Debug(ctx, "normalize dropped document", zap.String("url", raw.URL), zap.Error(err))
			}
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// Convert extracts title and text from a single fetched item.
func (n *Normalizer) Convert(raw domain.RawContent) (domain.Document, error) {
	if !raw.OK {
		return domain.Document{}, ErrNotFetched
	}

	mediaType, _, err := mime.ParseMediaType(raw.ContentType)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedContent, raw.ContentType)
	}

	var doc domain.Document
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		doc, err = convertHTML(raw.Body, raw.ContentType)
	case "text/plain", "text/markdown":
		doc, err = convertText(raw.Body, raw.ContentType)
	case "application/pdf":
		doc, err = convertPDF(raw.Body)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedContent, mediaType)
	}
	if err != nil {
		return domain.Document{}, err
	}

	if strings.TrimSpace(doc.Content) == "" {
		return domain.Document{}, ErrEmptyDocument
	}

	doc.URL = raw.URL
	return doc, nil
}

func convertHTML(body []byte, contentType string) (domain.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return domain.Document{}, fmt.Errorf("decode html: %w", err)
	}

	root, err := html.Parse(reader)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(textOf(findElement(root, "title")))

	contentRoot := findElement(root, "main")
	if contentRoot == nil {
		contentRoot = findElement(root, "article")
	}
	if contentRoot == nil {
		contentRoot = findElement(root, "body")
	}
	if contentRoot == nil {
		contentRoot = root
	}

	var sb strings.Builder
	extractText(contentRoot, &sb)
	text := sb.String()

	if title != "" && !strings.HasPrefix(strings.TrimSpace(text), title) {
		text = title + "\n" + text
	}

	return domain.Document{Title: title, Content: text}, nil
}

func extractText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		if blockElements[n.Data] {
			sb.WriteByte('\n')
			defer sb.WriteByte('\n')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func convertText(body []byte, contentType string) (domain.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return domain.Document{}, fmt.Errorf("decode text: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return domain.Document{}, fmt.Errorf("decode text: %w", err)
	}
	return domain.Document{Content: string(data)}, nil
}

// convertPDF extracts plain text page by page. The pdf package panics on
// some malformed inputs, so panics become errors.
func convertPDF(body []byte) (doc domain.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return domain.Document{}, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	return domain.Document{Content: sb.String()}, nil
}
