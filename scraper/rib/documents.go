package rib

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tender-scraper/models"
)

// docHrefPattern classifies a link target as document-indicating.
var docHrefPattern = regexp.MustCompile(`(?i)(document|download|attachment|/files?/|\.pdf\b|\.docx?\b|\.zip\b)`)

// KeywordFilter builds a document filter that keeps a document when its
// link text or filename contains any of the comma-separated keywords.
// An empty keyword list keeps everything.
func KeywordFilter(keywords string) func(models.DocumentRef) bool {
	var terms []string
	for _, kw := range strings.Split(keywords, ",") {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			terms = append(terms, kw)
		}
	}
	if len(terms) == 0 {
		return func(models.DocumentRef) bool { return true }
	}

	return func(ref models.DocumentRef) bool {
		haystack := strings.ToLower(ref.DisplayText + " " + ref.Filename)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				return true
			}
		}
		return false
	}
}

// ResolveDocuments enumerates document links in the expanded detail region.
// A link qualifies when it carries an explicit download attribute or its
// target matches the document pattern. Filenames are derived in priority
// order: download attribute, link text, synthesized "document_<n>" counter.
// Output keeps DOM order and is de-duplicated on (filename, url).
func ResolveDocuments(detailHTML string, base *url.URL, filter func(models.DocumentRef) bool) ([]models.DocumentRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detailHTML))
	if err != nil {
		return nil, fmt.Errorf("rib: parse detail html: %w", err)
	}

	var refs []models.DocumentRef
	seen := make(map[string]struct{})
	synthesized := 0

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, hasHref := a.Attr("href")
		download, hasDownload := a.Attr("download")

		if !hasDownload && (!hasHref || !docHrefPattern.MatchString(href)) {
			return
		}

		ref := models.DocumentRef{DisplayText: strings.TrimSpace(a.Text())}
		if hasHref {
			ref.URL = absoluteURL(base, href)
		}

		switch {
		case strings.TrimSpace(download) != "":
			ref.Filename = strings.TrimSpace(download)
		case ref.DisplayText != "":
			ref.Filename = ref.DisplayText
		default:
			synthesized++
			ref.Filename = fmt.Sprintf("document_%d%s", synthesized, extensionOf(ref.URL))
		}

		if filter != nil && !filter(ref) {
			return
		}

		key := ref.Filename + "\x00" + ref.URL
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		refs = append(refs, ref)
	})

	return refs, nil
}

func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// extensionOf guesses a file extension from the URL path, defaulting to the
// portal's usual .pdf.
func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".pdf"
}
