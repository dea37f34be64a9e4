// Package report renders grid files and run summaries for humans.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/gridbench/internal/griddata"
	"github.com/specialistvlad/gridbench/internal/results"
)

// NoResults is printed when a model has no output file yet.
const NoResults = "** No results found"

// Output formats accepted by Results and Experiment.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists every accepted format.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

const lineWidth = 90

type styles struct {
	title, header, odd, even lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
		header: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true).PaddingRight(1),
		odd:    r.NewStyle().Foreground(lipgloss.Color("6")).PaddingRight(1),
		even:   r.NewStyle().Foreground(lipgloss.Color("4")).PaddingRight(1),
	}
}

func (s styles) table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderBottom(false).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.header
			case row%2 == 0:
				return s.odd
			default:
				return s.even
			}
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// Dump lists the grid input file: every dataset key with its number of
// combinations and its grid lines.
func Dump(w io.Writer, g *griddata.GridData) error {
	s := newStyles(w)
	rows := make([][]string, 0, len(g.Datasets()))
	for i, name := range g.Datasets() {
		n, err := g.NumCombinations(name)
		if err != nil {
			return err
		}
		lines, err := g.InputGrid(name)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(lines)
		if err != nil {
			return err
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), name, strconv.Itoa(n), string(raw)})
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s\n\n",
		s.title.Render("Listing configuration input file (Grid)"),
		s.table([]string{"#", "Dataset", "#Com.", "Hyperparameters"}, rows))
	return err
}

func headerLine(text string) string {
	n := max(lineWidth-len(text)-3, 0)
	return "* " + text + strings.Repeat(" ", n) + "*"
}

func boolWord(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func metadataHeader(s styles, title string, m results.Metadata) string {
	seeds, _ := json.Marshal(m.Seeds)
	nested := "False"
	if m.Nested != 0 {
		nested = strconv.Itoa(m.Nested)
	}
	lines := []string{
		strings.Repeat("*", lineWidth),
		headerLine(title),
		headerLine("Date & time: " + m.Date + " Duration: " + m.Duration),
		headerLine("Score: " + m.Score),
		headerLine(fmt.Sprintf("Random seeds: %s Discretized: %s Stratified: %s #Folds: %d Nested: %s",
			seeds, boolWord(m.Discretize), boolWord(m.Stratified), m.NFolds, nested)),
		strings.Repeat("*", lineWidth),
	}
	return s.title.Render(strings.Join(lines, "\n"))
}

// Results renders a grid search output in the requested format.
func Results(w io.Writer, out *results.Output, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, out)
	case FormatYAML:
		return writeYAML(w, out)
	case FormatText, "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	s := newStyles(w)
	names := sortedNames(out.Results)
	rows := make([][]string, 0, len(names))
	for i, name := range names {
		e := out.Results[name]
		rows = append(rows, []string{
			strconv.Itoa(i), name, e.Date, e.Duration,
			strconv.FormatFloat(e.Score, 'f', 6, 64), e.Hyperparameters.String(),
		})
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n\n",
		metadataHeader(s, "Listing computed hyperparameters for model "+out.Model, out.Metadata),
		s.table([]string{"#", "Dataset", "Date", "Duration", "Score", "Hyperparameters"}, rows))
	return err
}

// Experiment renders an experiment output in the requested format.
func Experiment(w io.Writer, out *results.Experiment, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, out)
	case FormatYAML:
		return writeYAML(w, out)
	case FormatText, "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	s := newStyles(w)
	names := sortedNames(out.Results)
	rows := make([][]string, 0, len(names))
	for i, name := range names {
		e := out.Results[name]
		rows = append(rows, []string{
			strconv.Itoa(i), name, e.Duration,
			fmt.Sprintf("%.6f±%.4f", e.Score, e.ScoreStd),
			fmt.Sprintf("%.2f", e.Nodes), fmt.Sprintf("%.2f", e.Leaves), fmt.Sprintf("%.2f", e.Depth),
			e.Hyperparameters.String(),
		})
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n\n",
		metadataHeader(s, "Experiment results for model "+out.Model, out.Metadata),
		s.table([]string{"#", "Dataset", "Duration", "Score", "Nodes", "Leaves", "Depth", "Hyperparameters"}, rows))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// writeYAML goes through JSON so field names and key order match the
// persisted file. Styles are reset so the document comes out in block form;
// the encoder still quotes strings that would otherwise change type.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
