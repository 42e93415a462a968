package ingest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// Document link kinds the indexer understands.
const (
	docLinkMarker   = "docs.google.com/document"
	sheetLinkMarker = "docs.google.com/spreadsheets"
)

// GoogleFetcher pulls the text content of linked Google Docs and Sheets.
type GoogleFetcher struct {
	docs   *docs.Service
	sheets *sheets.Service
}

func NewGoogleFetcher(ctx context.Context, ts oauth2.TokenSource) (*GoogleFetcher, error) {
	docsSvc, err := docs.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("docs service: %w", err)
	}
	sheetsSvc, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &GoogleFetcher{docs: docsSvc, sheets: sheetsSvc}, nil
}

// FetchLink resolves a shared Docs/Sheets link to its current text content.
func (g *GoogleFetcher) FetchLink(ctx context.Context, link string) (string, error) {
	id, err := fileIDFromLink(link)
	if err != nil {
		return "", err
	}

	switch {
	case strings.Contains(link, docLinkMarker):
		return g.fetchDoc(ctx, id)
	case strings.Contains(link, sheetLinkMarker):
		return g.fetchSheet(ctx, id)
	}
	return "", fmt.Errorf("unsupported document link %q", link)
}

func (g *GoogleFetcher) fetchDoc(ctx context.Context, docID string) (string, error) {
	doc, err := g.docs.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("fetch google doc: %w", err)
	}

	var b strings.Builder
	if doc.Body != nil {
		for _, el := range doc.Body.Content {
			if el.Paragraph == nil {
				continue
			}
			for _, pe := range el.Paragraph.Elements {
				if pe.TextRun != nil {
					b.WriteString(pe.TextRun.Content)
				}
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (g *GoogleFetcher) fetchSheet(ctx context.Context, sheetID string) (string, error) {
	resp, err := g.sheets.Spreadsheets.Values.Get(sheetID, "Sheet1").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("fetch google sheet: %w", err)
	}

	lines := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

// fileIDFromLink extracts the file id from a docs.google.com/.../d/<id>/ link.
func fileIDFromLink(link string) (string, error) {
	_, after, found := strings.Cut(link, "/d/")
	if !found {
		return "", fmt.Errorf("no file id in link %q", link)
	}
	id, _, _ := strings.Cut(after, "/")
	if id == "" {
		return "", fmt.Errorf("no file id in link %q", link)
	}
	return id, nil
}
