package citations

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/autoscholar/backend/internal/storage/models"
)

type Style string

const (
	StyleAPA     Style = "apa"
	StyleMLA     Style = "mla"
	StyleChicago Style = "chicago"
	StyleBibTeX  Style = "bibtex"
)

// Format renders one paper in the requested citation style.
func Format(paper *models.Paper, style Style) (string, error) {
	switch style {
	case StyleAPA:
		return formatAPA(paper), nil
	case StyleMLA:
		return formatMLA(paper), nil
	case StyleChicago:
		return formatChicago(paper), nil
	case StyleBibTeX:
		return formatBibTeX(paper), nil
	default:
		return "", fmt.Errorf("unsupported citation style: %s", style)
	}
}

// Export renders a batch of papers in one style, separated by blank lines.
func Export(papers []models.Paper, style Style) (string, error) {
	parts := make([]string, 0, len(papers))
	for i := range papers {
		formatted, err := Format(&papers[i], style)
		if err != nil {
			return "", err
		}
		parts = append(parts, formatted)
	}
	return strings.Join(parts, "\n\n"), nil
}

// formatAPA renders "Lname, F., & Lname, F. (year). Title. Journal, vol(issue), pages."
func formatAPA(p *models.Paper) string {
	var sb strings.Builder

	sb.WriteString(apaAuthors(p.Authors))

	if p.Year > 0 {
		fmt.Fprintf(&sb, " (%d).", p.Year)
	} else {
		sb.WriteString(" (n.d.).")
	}

	fmt.Fprintf(&sb, " %s.", strings.TrimSuffix(p.DisplayTitle(), "."))

	if p.Journal != "" {
		fmt.Fprintf(&sb, " %s", p.Journal)
		if p.Volume != "" {
			fmt.Fprintf(&sb, ", %s", p.Volume)
			if p.Issue != "" {
				fmt.Fprintf(&sb, "(%s)", p.Issue)
			}
		}
		if p.Pages != "" {
			fmt.Fprintf(&sb, ", %s", p.Pages)
		}
		sb.WriteString(".")
	}

	if p.DOI != "" {
		fmt.Fprintf(&sb, " https://doi.org/%s", p.DOI)
	}

	return strings.TrimSpace(sb.String())
}

func apaAuthors(authors []models.Author) string {
	if len(authors) == 0 {
		return "Unknown."
	}

	formatted := make([]string, 0, len(authors))
	for _, a := range authors {
		last, initials := splitName(a.Name)
		if initials != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", last, initials))
		} else {
			formatted = append(formatted, last)
		}
	}

	switch len(formatted) {
	case 1:
		return formatted[0] + "."
	case 2:
		return formatted[0] + ", & " + formatted[1] + "."
	default:
		if len(formatted) > 20 {
			formatted = formatted[:19]
			return strings.Join(formatted, ", ") + ", ... " + apaLastAuthor(authors) + "."
		}
		return strings.Join(formatted[:len(formatted)-1], ", ") + ", & " + formatted[len(formatted)-1] + "."
	}
}

func apaLastAuthor(authors []models.Author) string {
	last, initials := splitName(authors[len(authors)-1].Name)
	if initials != "" {
		return fmt.Sprintf("%s, %s", last, initials)
	}
	return last
}

// formatMLA renders `Lname, First, et al. "Title." Journal, vol. N, no. N, year, pp. N.`
func formatMLA(p *models.Paper) string {
	var sb strings.Builder

	switch len(p.Authors) {
	case 0:
		sb.WriteString("Unknown.")
	case 1:
		sb.WriteString(mlaName(p.Authors[0].Name) + ".")
	case 2:
		sb.WriteString(mlaName(p.Authors[0].Name) + ", and " + p.Authors[1].Name + ".")
	default:
		sb.WriteString(mlaName(p.Authors[0].Name) + ", et al.")
	}

	fmt.Fprintf(&sb, " %q", strings.TrimSuffix(p.DisplayTitle(), ".")+".")

	if p.Journal != "" {
		fmt.Fprintf(&sb, " %s", p.Journal)
		if p.Volume != "" {
			fmt.Fprintf(&sb, ", vol. %s", p.Volume)
		}
		if p.Issue != "" {
			fmt.Fprintf(&sb, ", no. %s", p.Issue)
		}
	}
	if p.Year > 0 {
		fmt.Fprintf(&sb, ", %d", p.Year)
	}
	if p.Pages != "" {
		fmt.Fprintf(&sb, ", pp. %s", p.Pages)
	}
	sb.WriteString(".")

	return strings.TrimSpace(sb.String())
}

func mlaName(name string) string {
	last, _ := splitName(name)
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	first := strings.Join(parts[:len(parts)-1], " ")
	return last + ", " + first
}

// formatChicago renders `Lname, First. "Title." Journal vol, no. N (year): pages.`
func formatChicago(p *models.Paper) string {
	var sb strings.Builder

	switch len(p.Authors) {
	case 0:
		sb.WriteString("Unknown.")
	case 1:
		sb.WriteString(mlaName(p.Authors[0].Name) + ".")
	default:
		names := []string{mlaName(p.Authors[0].Name)}
		for _, a := range p.Authors[1:] {
			names = append(names, a.Name)
		}
		sb.WriteString(strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1] + ".")
	}

	fmt.Fprintf(&sb, " %q", strings.TrimSuffix(p.DisplayTitle(), ".")+".")

	if p.Journal != "" {
		fmt.Fprintf(&sb, " %s", p.Journal)
		if p.Volume != "" {
			fmt.Fprintf(&sb, " %s", p.Volume)
		}
		if p.Issue != "" {
			fmt.Fprintf(&sb, ", no. %s", p.Issue)
		}
	}
	if p.Year > 0 {
		fmt.Fprintf(&sb, " (%d)", p.Year)
	}
	if p.Pages != "" {
		fmt.Fprintf(&sb, ": %s", p.Pages)
	}
	sb.WriteString(".")

	return strings.TrimSpace(sb.String())
}

func formatBibTeX(p *models.Paper) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "@article{%s,\n", bibtexKey(p))
	fmt.Fprintf(&sb, "  title = {%s},\n", p.DisplayTitle())

	if len(p.Authors) > 0 {
		names := make([]string, len(p.Authors))
		for i, a := range p.Authors {
			names[i] = a.Name
		}
		fmt.Fprintf(&sb, "  author = {%s},\n", strings.Join(names, " and "))
	}
	if p.Journal != "" {
		fmt.Fprintf(&sb, "  journal = {%s},\n", p.Journal)
	}
	if p.Volume != "" {
		fmt.Fprintf(&sb, "  volume = {%s},\n", p.Volume)
	}
	if p.Issue != "" {
		fmt.Fprintf(&sb, "  number = {%s},\n", p.Issue)
	}
	if p.Pages != "" {
		fmt.Fprintf(&sb, "  pages = {%s},\n", p.Pages)
	}
	if p.Year > 0 {
		fmt.Fprintf(&sb, "  year = {%d},\n", p.Year)
	}
	if p.Publisher != "" {
		fmt.Fprintf(&sb, "  publisher = {%s},\n", p.Publisher)
	}
	if p.DOI != "" {
		fmt.Fprintf(&sb, "  doi = {%s},\n", p.DOI)
	}
	if p.URL != "" {
		fmt.Fprintf(&sb, "  url = {%s},\n", p.URL)
	}

	sb.WriteString("}")
	return sb.String()
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// bibtexKey derives "lnameYEARfirstword" from the paper.
func bibtexKey(p *models.Paper) string {
	last := "unknown"
	if len(p.Authors) > 0 {
		l, _ := splitName(p.Authors[0].Name)
		last = strings.ToLower(nonAlnum.ReplaceAllString(strings.ToLower(l), ""))
		if last == "" {
			last = "unknown"
		}
	}

	year := ""
	if p.Year > 0 {
		year = fmt.Sprintf("%d", p.Year)
	}

	word := ""
	for _, f := range strings.Fields(strings.ToLower(p.DisplayTitle())) {
		f = nonAlnum.ReplaceAllString(f, "")
		if len(f) > 3 {
			word = f
			break
		}
	}

	return last + year + word
}

// splitName returns the surname and the dotted initials of the given names.
func splitName(name string) (last string, initials string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "Unknown", ""
	}
	last = parts[len(parts)-1]

	var sb strings.Builder
	for _, given := range parts[:len(parts)-1] {
		r := []rune(given)
		if len(r) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%c. ", r[0])
	}
	return last, strings.TrimSpace(sb.String())
}
