package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// renderMarkdown renders markdown content, using glamour for terminal output or plain text otherwise
func renderMarkdown(w io.Writer, markdown string, theme string) string {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		// For non-terminal output (pipes, redirects, tests), return plain markdown
		return markdown
	}

	rendered, err := glamour.Render(markdown, theme)
	if err != nil {
		// Fall back to plain markdown if rendering fails
		return markdown
	}
	return rendered
}

// printMarkdown renders and prints markdown using the theme of the current context
func printMarkdown(w io.Writer, cc *CliContext, markdown string) {
	fmt.Fprint(w, renderMarkdown(w, markdown, getTheme(cc)))
}

// getTheme returns the theme from the current context, or "auto" if unset
func getTheme(cc *CliContext) string {
	if cc == nil || cc.Context == nil || cc.Context.Rendering.Theme == "" {
		return "auto"
	}
	return cc.Context.Rendering.Theme
}
