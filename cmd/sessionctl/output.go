package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/dropcart/session-record-service/internal/core/domain"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Width(12)
)

// writeStructured renders v as indented JSON or as YAML. YAML goes through
// the JSON encoding so field names match the API.
func writeStructured(w io.Writer, format string, v any) error {
	if view, ok := v.(eventsView); ok && format == outputJSON {
		return writeEventsJSON(w, view)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	if format == outputJSON {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(&node)
}

// writeEventsJSON indents the envelope and writes one compact event per
// line. Indenting the events would reformat their data payloads.
func writeEventsJSON(w io.Writer, view eventsView) error {
	id, err := json.Marshal(view.SessionID)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("{\n  \"sessionId\": ")
	b.Write(id)
	b.WriteString(",\n  \"events\": [")
	for i, e := range view.Events {
		line, err := compactJSON(e)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("\n    ")
		b.Write(line)
	}
	if len(view.Events) > 0 {
		b.WriteString("\n  ")
	}
	b.WriteString("]\n}\n")

	_, err = w.Write(b.Bytes())
	return err
}

// compactJSON encodes v without HTML escaping so stored payload bytes pass
// through as they are.
func compactJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// blockStyle clears the flow and quoting styles JSON input leaves on nodes.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func writeSessionTable(w io.Writer, list []*domain.SessionMetadata, offset int) {
	if len(list) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No sessions found"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d session(s) from #%d", len(list), offset+1)))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{
		titleStyle.Render("ID"),
		titleStyle.Render("URL"),
		titleStyle.Render("Events"),
		titleStyle.Render("Duration"),
		titleStyle.Render("Updated"),
	}, "\t"))

	for _, m := range list {
		fmt.Fprintln(tw, strings.Join([]string{
			idStyle.Render(m.SessionID),
			urlStyle.Render(truncate(m.URL, 50)),
			countStyle.Render(strconv.Itoa(m.EventCount)),
			formatDuration(m.Duration),
			dateStyle.Render(formatTime(m.UpdatedAt)),
		}, "\t"))
	}
	_ = tw.Flush()
}

func writeSessionDetail(w io.Writer, m *domain.SessionMetadata) {
	fmt.Fprintln(w, headerStyle.Render("Session "+m.SessionID))
	rows := [][2]string{
		{"URL", urlStyle.Render(m.URL)},
		{"Started", dateStyle.Render(formatTime(time.UnixMilli(m.Timestamp)))},
		{"Duration", formatDuration(m.Duration)},
		{"Events", countStyle.Render(strconv.Itoa(m.EventCount))},
		{"Created", dateStyle.Render(formatTime(m.CreatedAt))},
		{"Updated", dateStyle.Render(formatTime(m.UpdatedAt))},
	}
	for _, r := range rows {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), r[1]))
	}
}

func writeEventTable(w io.Writer, sessionID string, events []domain.SessionEvent) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d event(s) in %s", len(events), sessionID)))
	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w)

	first := events[0].Timestamp
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{
		titleStyle.Render("#"),
		titleStyle.Render("Type"),
		titleStyle.Render("Offset"),
		titleStyle.Render("Bytes"),
	}, "\t"))
	for i, e := range events {
		fmt.Fprintln(tw, strings.Join([]string{
			strconv.Itoa(i),
			countStyle.Render(strconv.Itoa(e.Type)),
			"+" + formatDuration(e.Timestamp-first),
			strconv.Itoa(len(e.Data)),
		}, "\t"))
	}
	_ = tw.Flush()
}
