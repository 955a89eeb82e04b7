package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher"
)

const (
	colorAccent = "39"
	colorGray   = "245"
	colorYellow = "220"
)

// Styles used by Render.
type Styles struct {
	Header  lipgloss.Style
	Rank    lipgloss.Style
	Title   lipgloss.Style
	Score   lipgloss.Style
	Label   lipgloss.Style
	Warning lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Rank:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)).Width(4).Align(lipgloss.Right),
		Title:   lipgloss.NewStyle().Bold(true),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
	}
}

// PlainStyles renders without colors, for pipes and tests.
func PlainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Rank:    lipgloss.NewStyle().Width(4).Align(lipgloss.Right),
		Title:   lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
	}
}

// Render writes a ranked listing of r to w.
func Render(w io.Writer, r *searcher.Report, st Styles) error {
	var b strings.Builder
	b.WriteString(st.Header.Render(fmt.Sprintf("%d results for %q", len(r.Entries), r.Query)))
	b.WriteString("\n")
	if len(r.Degraded) > 0 {
		b.WriteString(st.Warning.Render("incomplete: could not read " + strings.Join(r.Degraded, ", ")))
		b.WriteString("\n")
	}
	for i, e := range r.Entries {
		title := "(untitled)"
		if e.Title != nil && *e.Title != "" {
			title = *e.Title
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			st.Rank.Render(fmt.Sprintf("%d.", i+1)),
			" ",
			st.Score.Render(fmt.Sprintf("%.5f", e.Score)),
			"  ",
			st.Title.Render(title),
		)
		b.WriteString(line)
		b.WriteString("\n")
		if e.ArticleURL != "" {
			b.WriteString("      " + st.Label.Render(e.ArticleURL) + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
