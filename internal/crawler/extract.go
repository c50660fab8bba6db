package crawler

import (
	"net/url"
	"strings"

	"sjsage522/blogworker/helpers"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extractor turns an article body into ordered content blocks
type Extractor struct {
	base       *url.URL
	operations string
}

// NewExtractor creates an extractor resolving relative image URLs against baseURL.
// Everything at and after the first element matching operationsSelector is dropped.
func NewExtractor(baseURL, operationsSelector string) *Extractor {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}
	return &Extractor{base: base, operations: operationsSelector}
}

// ExtractHTML parses an HTML fragment and extracts blocks from its first top-level element
func (e *Extractor) ExtractHTML(fragment string) ([]ContentBlock, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}
	return e.Extract(doc.Find("body").Children().First()), nil
}

// ExtractDocument picks the content region through the selector chain and extracts it.
// A page without any known content region falls back to the flat extraction of <body>.
func (e *Extractor) ExtractDocument(doc *goquery.Document, chain []string) []ContentBlock {
	for _, selector := range chain {
		if region := doc.Find(selector).First(); region.Length() > 0 {
			return e.Extract(region)
		}
	}
	return e.ExtractFlat(doc.Find("body"))
}

// Extract walks root depth-first and emits text and image blocks in reading order
func (e *Extractor) Extract(root *goquery.Selection) []ContentBlock {
	if root.Length() == 0 {
		return placeholderContent()
	}
	root = root.First().Clone()
	e.stripOperations(root)

	v := &blockVisitor{extractor: e, seen: make(map[string]struct{})}
	v.visitChildren(root.Get(0))
	return orPlaceholder(v.blocks)
}

// ExtractFlat emits every image first and then the text of paragraph, heading and div elements.
// It is used when the reading order of the page is unknown.
func (e *Extractor) ExtractFlat(root *goquery.Selection) []ContentBlock {
	if root.Length() == 0 {
		return placeholderContent()
	}
	root = root.First().Clone()
	e.stripOperations(root)
	root.Find("script, style, noscript, template").Remove()

	var blocks []ContentBlock
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src := e.imageSource(img.Get(0)); src != "" {
			blocks = append(blocks, ContentBlock{Type: BlockImage, Value: src})
		}
	})

	seen := make(map[string]struct{})
	root.Find("p, h1, h2, h3, h4, h5, h6, div").Each(func(_ int, s *goquery.Selection) {
		text := helpers.CollapseSpace(s.Text())
		if len([]rune(text)) <= 2 {
			return
		}
		key := dedupKey(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		blocks = append(blocks, ContentBlock{Type: BlockText, Value: text})
	})

	return orPlaceholder(blocks)
}

// stripOperations removes the operations marker and every node that follows it in document order
func (e *Extractor) stripOperations(root *goquery.Selection) {
	if e.operations == "" {
		return
	}
	marker := root.Find(e.operations).First()
	if marker.Length() == 0 {
		return
	}

	rootNode := root.Get(0)
	markerNode := marker.Get(0)
	for n := markerNode; n != nil && n != rootNode; n = n.Parent {
		for sib := n.NextSibling; sib != nil; {
			next := sib.NextSibling
			n.Parent.RemoveChild(sib)
			sib = next
		}
	}
	markerNode.Parent.RemoveChild(markerNode)
}

func (e *Extractor) imageSource(n *html.Node) string {
	var src string
	for _, key := range []string{"src", "data-src", "data-original"} {
		v := strings.TrimSpace(attr(n, key))
		if v != "" && !strings.HasPrefix(v, "data:") {
			src = v
			break
		}
	}
	if src == "" {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return e.base.ResolveReference(ref).String()
}

// blockVisitor walks Element and Text nodes. Consecutive inline content is merged into one text block.
type blockVisitor struct {
	extractor *Extractor
	blocks    []ContentBlock
	seen      map[string]struct{}
}

func (v *blockVisitor) visit(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		v.emitText(n.Data)
	case html.ElementNode:
		v.visitElement(n)
	}
}

func (v *blockVisitor) visitElement(n *html.Node) {
	switch n.DataAtom {
	case atom.Img:
		if src := v.extractor.imageSource(n); src != "" {
			v.blocks = append(v.blocks, ContentBlock{Type: BlockImage, Value: src})
		}
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
	case atom.Pre:
		v.emitText(preformattedText(n))
	default:
		v.visitChildren(n)
	}
}

func (v *blockVisitor) visitChildren(n *html.Node) {
	var run strings.Builder
	flush := func() {
		v.emitText(run.String())
		run.Reset()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isInline(c) {
			inlineText(c, &run)
			continue
		}
		flush()
		v.visit(c)
	}
	flush()
}

func (v *blockVisitor) emitText(raw string) {
	text := normalizeText(raw)
	if text == "" {
		return
	}
	key := dedupKey(text)
	if _, ok := v.seen[key]; ok {
		return
	}
	v.seen[key] = struct{}{}
	v.blocks = append(v.blocks, ContentBlock{Type: BlockText, Value: text})
}

var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Details: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tbody: true, atom.Thead: true, atom.Tfoot: true, atom.Tr: true, atom.Td: true,
	atom.Th: true, atom.Ul: true, atom.Video: true,
}

var skippedAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// isInline reports whether n only carries inline text: no block element or image below it
func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		if blockAtoms[n.DataAtom] || skippedAtoms[n.DataAtom] || n.DataAtom == atom.Img {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !isInline(c) && c.Type == html.ElementNode {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func inlineText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(spaceReplacer.Replace(n.Data))
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			sb.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inlineText(c, sb)
		}
	}
}

func preformattedText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

var spaceReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// normalizeText trims every line, folds inner whitespace and joins non-empty lines with a single newline
func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = helpers.CollapseSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// dedupKey ignores whitespace and letter case so near-identical fragments collide
func dedupKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), ""))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func placeholderContent() []ContentBlock {
	return []ContentBlock{{Type: BlockText, Value: EmptyContentMarker}}
}

func orPlaceholder(blocks []ContentBlock) []ContentBlock {
	if len(blocks) == 0 {
		return placeholderContent()
	}
	return blocks
}
