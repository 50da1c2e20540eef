package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

const timeFormat = "2006-01-02 15:04"

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// renderDashboards writes list in the given output format.
func renderDashboards(w io.Writer, format string, list []*core.Dashboard) error {
	if list == nil {
		list = []*core.Dashboard{}
	}
	switch format {
	case config.OutputJSON:
		return renderJSON(w, list)
	case config.OutputYAML:
		return renderYAML(w, list)
	default:
		return renderTable(w, list)
	}
}

func renderTable(w io.Writer, list []*core.Dashboard) error {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "(0 dashboards)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Tags", "Panels", "Updated", "Updated By"})
	for _, d := range list {
		t.AppendRow(table.Row{
			d.ID,
			d.Data.Title,
			strings.Join(d.Data.Tags, ", "),
			len(core.VisibleLayout(d.Data.Layout)),
			d.UpdatedAt.Local().Format(timeFormat),
			d.UpdatedBy,
		})
	}
	t.Render()
	return nil
}
