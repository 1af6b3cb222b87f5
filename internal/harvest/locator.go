package harvest

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matches 2025-08-27 or 08-27-2025 inside a table cell.
var datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b|\b(\d{2}-\d{2}-\d{4})\b`)

const viewReportText = "view report"

// LocateLatest extracts the newest entry from the listing page. The listing
// is reverse-chronological, so the first row of the first table wins. A
// missing date is not an error; the filename falls back to URL-derived
// naming in that case.
func LocateLatest(body []byte, base *url.URL) (ListingEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ListingEntry{}, fmt.Errorf("parse listing page: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return ListingEntry{}, &StructureError{What: "table"}
	}

	rows := table.Find("tbody").First()
	if rows.Length() == 0 {
		rows = table
	}
	row := rows.Find("tr").First()
	if row.Length() == 0 {
		return ListingEntry{}, &StructureError{What: "row"}
	}

	rawDate, normalized := findRowDate(row)

	href, err := findDetailHref(row)
	if err != nil {
		return ListingEntry{}, err
	}
	detail, err := resolveHref(base, href)
	if err != nil {
		return ListingEntry{}, fmt.Errorf("resolve detail link %q: %w", href, err)
	}

	return ListingEntry{
		DetailURL:  detail,
		ReportDate: normalized,
		RawDate:    rawDate,
	}, nil
}

// ResolveArtifact finds the one PDF link on the detail page and resolves it
// against the base URL.
func ResolveArtifact(body []byte, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse detail page: %w", err)
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if strings.HasSuffix(strings.ToLower(h), ".pdf") {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return "", ErrArtifactNotFound
	}

	artifact, err := resolveHref(base, href)
	if err != nil {
		return "", fmt.Errorf("resolve pdf link %q: %w", href, err)
	}
	return artifact, nil
}

// findRowDate scans the row's cells in order and returns the first date
// token, raw and normalized to MM-DD-YYYY.
func findRowDate(row *goquery.Selection) (raw string, normalized string) {
	row.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		m := datePattern.FindStringSubmatch(strings.TrimSpace(td.Text()))
		if m == nil {
			return true
		}
		if m[1] != "" {
			raw = m[1]
		} else {
			raw = m[2]
		}
		return false
	})
	if raw == "" {
		return "", ""
	}
	return raw, normalizeDate(raw)
}

// normalizeDate converts YYYY-MM-DD to MM-DD-YYYY; MM-DD-YYYY passes
// through unchanged.
func normalizeDate(raw string) string {
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return raw
	}
	if len(parts[0]) == 4 {
		return fmt.Sprintf("%s-%s-%s", parts[1], parts[2], parts[0])
	}
	return raw
}

// findDetailHref prefers the link whose visible text is "view report"
// (case-insensitive, trimmed) and falls back to the last link in the row.
func findDetailHref(row *goquery.Selection) (string, error) {
	links := row.Find("a[href]")
	if links.Length() == 0 {
		return "", ErrNoLinkFound
	}

	var href string
	links.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(a.Text()), viewReportText) {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	if href == "" {
		href, _ = links.Last().Attr("href")
	}
	return href, nil
}

func resolveHref(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
