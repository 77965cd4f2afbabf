package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
)

// minReadableLength is the shortest readability text accepted before falling
// back to the page's visible text.
const minReadableLength = 50

// The converter is safe for concurrent use.
var markdown = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal)),
	),
)

// ExtractContent builds the content inventory of a page: main text,
// markdown, headings, paragraphs, images, links, lists, tables and forms.
func ExtractContent(markup, sourceURL string) (model.ContentData, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return model.ContentData{}, err
	}
	pageURL := parseBase(sourceURL)

	out := model.ContentData{
		Title: collapse(doc.Find("title").First().Text()),
	}
	if out.Title == "" {
		out.Title = collapse(doc.Find("h1").First().Text())
	}

	mainHTML, mainText := mainContent(markup, doc, pageURL)
	out.MainText = mainText
	out.WordCount = len(strings.Fields(mainText))

	md, err := markdown.ConvertString(mainHTML, converter.WithDomain(domainOf(pageURL)))
	if err != nil {
		zap.L().Debug("extract: markdown conversion failed", zap.String("url", sourceURL), zap.Error(err))
	} else {
		out.Markdown = strings.TrimSpace(md)
	}

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		if text == "" {
			return
		}
		level, _ := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		out.Headings = append(out.Headings, model.Heading{Level: level, Text: text})
	})

	paragraphs := newStringSet()
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		paragraphs.Add(collapse(s.Text()))
	})
	out.Paragraphs = paragraphs.Items()

	out.Images = images(doc, pageURL)
	out.Links = links(doc, pageURL)

	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		var items []string
		s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			if text := collapse(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			out.Lists = append(out.Lists, items)
		}
	})

	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		var t model.Table
		s.Find("th").Each(func(_ int, th *goquery.Selection) {
			t.Headers = append(t.Headers, collapse(th.Text()))
		})
		s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				row = append(row, collapse(td.Text()))
			})
			if len(row) > 0 {
				t.Rows = append(t.Rows, row)
			}
		})
		if len(t.Headers) > 0 || len(t.Rows) > 0 {
			out.Tables = append(out.Tables, t)
		}
	})

	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		out.Forms = append(out.Forms, formShape(f, pageURL))
	})

	return out, nil
}

// mainContent runs readability over the page, falling back to the visible
// body text when readability cannot find an article.
func mainContent(markup string, doc *goquery.Document, pageURL *url.URL) (string, string) {
	u := pageURL
	if u == nil {
		u = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}
	}
	article, err := readability.FromReader(strings.NewReader(markup), u)
	if err == nil && len(strings.TrimSpace(article.TextContent)) >= minReadableLength {
		return article.Content, collapse(article.TextContent)
	}
	return markup, visibleText(doc)
}

func domainOf(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func images(doc *goquery.Document, pageURL *url.URL) []model.Image {
	var out []model.Image
	seen := newURLSet()
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if abs := resolve(pageURL, src); abs != "" {
			src = abs
		}
		if seen.Add(src) {
			out = append(out, model.Image{Src: src, Alt: strings.TrimSpace(s.AttrOr("alt", ""))})
		}
	})
	return out
}

func links(doc *goquery.Document, pageURL *url.URL) []model.Link {
	var out []model.Link
	seen := newURLSet()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		abs := resolve(pageURL, s.AttrOr("href", ""))
		if abs == "" || !seen.Add(abs) {
			return
		}
		internal := false
		if pageURL != nil {
			if u, err := url.Parse(abs); err == nil {
				internal = SameSite(u.Host, pageURL.Host)
			}
		}
		out = append(out, model.Link{URL: abs, Text: collapse(s.Text()), Internal: internal})
	})
	return out
}

// SameSite compares hosts ignoring case and a leading "www.".
func SameSite(a, b string) bool {
	norm := func(h string) string {
		return strings.TrimPrefix(strings.ToLower(h), "www.")
	}
	return norm(a) == norm(b)
}
