package render

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown convierte el texto del modelo a HTML. El HTML crudo del input se descarta.
func Markdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	// parser.Parser no es reutilizable entre documentos.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank,
	})
	return string(markdown.ToHTML([]byte(src), p, renderer))
}
