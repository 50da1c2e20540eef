package dashboards

import (
	"fmt"
	"net/url"
	"strconv"

	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	dashboardsvc "github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// Element ids patched over SSE.
const (
	tableID    = "dashboard-table"
	viewElemID = "dashboard-view"
	gridID     = "dashboard-grid"
	sliderID   = "dashboard-slider"
)

const dateLayout = "2006-01-02 15:04"

func listPage(s *common.Session, list []*core.Dashboard, q, errMsg string) g.Node {
	return common.Page("Dashboards", s,
		html.Div(html.Class("card"),
			common.Datastar("signals", fmt.Sprintf("{search: %s}", strconv.Quote(q))),
			common.Datastar("init", "@get('/updates')"),
			html.H2(g.Text("Dashboards")),
			g.If(errMsg != "", common.ErrorMessage(errMsg)),
			html.Input(
				html.Type("search"),
				html.Placeholder("Search by Name, Description, Tags"),
				common.Datastar("bind:search", ""),
				common.Datastar("on:input__debounce.500ms", "@get('/dashboard/search')"),
			),
			html.Form(html.Method("post"), html.Action("/dashboard"),
				html.Input(html.Type("text"), html.Name("title"), html.Placeholder(dashboardsvc.DefaultTitle)),
				html.Button(html.Class("primary"), html.Type("submit"), g.Text("New Dashboard")),
			),
			html.Form(html.Method("post"), html.Action("/dashboard/import"), g.Attr("enctype", "multipart/form-data"),
				html.Textarea(html.Name("json"), g.Attr("rows", "4"), html.Placeholder("Paste dashboard JSON")),
				html.Input(html.Type("file"), html.Name("file"), g.Attr("accept", "application/json")),
				html.Button(html.Type("submit"), g.Text("Import JSON")),
			),
		),
		dashboardTable(list),
	)
}

func dashboardTable(list []*core.Dashboard) g.Node {
	return html.Div(html.ID(tableID), html.Class("card"),
		g.If(len(list) == 0, html.P(html.Class("muted"), g.Text("No dashboards"))),
		g.If(len(list) > 0,
			html.Table(
				html.THead(html.Tr(
					html.Th(g.Text("Name")),
					html.Th(g.Text("Description")),
					html.Th(g.Text("Tags")),
					html.Th(g.Text("Created At")),
					html.Th(g.Text("Last Updated Time")),
					html.Th(g.Text("Action")),
				)),
				html.TBody(g.Map(list, dashboardRow)),
			),
		),
	)
}

func dashboardRow(d *core.Dashboard) g.Node {
	return html.Tr(
		html.Td(html.A(html.Href(route.DashboardPath(d.ID)), g.Text(d.Data.Title))),
		html.Td(g.Text(d.Data.Description)),
		html.Td(tags(d.Data.Tags)),
		html.Td(g.Text(d.CreatedAt.Format(dateLayout))),
		html.Td(g.Text(d.UpdatedAt.Format(dateLayout))),
		html.Td(
			html.Form(html.Method("post"), html.Action(route.DashboardPath(d.ID)+"/delete"),
				html.Button(html.Type("submit"), g.Text("Delete")),
			),
		),
	)
}

func tags(list []string) g.Node {
	return g.Map(list, func(t string) g.Node {
		return html.Span(html.Class("tag"), g.Text(t))
	})
}

func viewPage(s *common.Session, state provider.State, widgetID, viewID string) g.Node {
	title := "Dashboard"
	if state.SelectedDashboard != nil {
		title = state.SelectedDashboard.Data.Title
	}

	var body g.Node
	if !s.Authenticated() {
		body = html.Div(html.Class("card"),
			html.P(g.Text("Sign in to view this dashboard.")),
			html.A(html.Href("/login?next="+route.DashboardPath(state.DashboardID)), g.Text("Sign in")),
		)
	} else {
		body = html.Div(
			common.Datastar("init", "@get('"+viewURL(state.DashboardID, "/updates", viewID)+"')"),
			dashboardView(state, widgetID, viewID),
		)
	}
	return common.Page(title, s, body)
}

func dashboardView(state provider.State, widgetID, viewID string) g.Node {
	res := state.DashboardResponse
	d := state.SelectedDashboard

	var content g.Node
	switch {
	case d == nil && res.IsError():
		content = common.ErrorMessage("Failed to load dashboard: " + res.Err.Error())
	case d == nil:
		content = html.P(html.Class("muted"), g.Text("Loading…"))
	default:
		content = g.Group{
			header(d, state.IsDashboardSliderOpen, viewID),
			g.If(res.IsError(), common.ErrorMessage("Showing last loaded version: "+errText(res.Err))),
			layoutGrid(state.Layouts, widgetID),
			sliderPanel(state.IsDashboardSliderOpen, d),
		}
	}

	return html.Div(html.ID(viewElemID), content)
}

func header(d *core.Dashboard, sliderOpen bool, viewID string) g.Node {
	return html.Div(html.Class("card"),
		common.Datastar("signals", fmt.Sprintf("{title: %s, sliderOpen: %t}", strconv.Quote(d.Data.Title), sliderOpen)),
		html.H2(
			html.Input(
				html.Type("text"),
				html.Value(d.Data.Title),
				common.Datastar("bind:title", ""),
				common.Datastar("on:input", "@post('"+viewURL(d.ID, "/title", viewID)+"')"),
			),
		),
		html.P(g.Text(d.Data.Description)),
		html.Div(tags(d.Data.Tags)),
		html.Button(
			html.Type("button"),
			common.Datastar("on:click", "$sliderOpen = !$sliderOpen; @post('"+viewURL(d.ID, "/slider", viewID)+"')"),
			g.Text("Configure"),
		),
	)
}

func layoutGrid(entries []core.LayoutEntry, widgetID string) g.Node {
	return html.Div(html.ID(gridID), html.Class("grid"),
		g.If(len(entries) == 0, html.P(html.Class("muted"), g.Text("This dashboard has no panels yet."))),
		g.Map(entries, func(e core.LayoutEntry) g.Node {
			class := "panel"
			if e.I == widgetID {
				class += " focused"
			}
			return html.Div(
				html.Class(class),
				g.Attr("data-panel", e.I),
				g.Attr("style", fmt.Sprintf("grid-column: %d / span %d; grid-row: %d / span %d",
					e.X+1, max(e.W, 1), e.Y+1, max(e.H, 1))),
				g.Text(e.I),
			)
		}),
	)
}

func sliderPanel(open bool, d *core.Dashboard) g.Node {
	class := "slider"
	if !open {
		class += " closed"
	}
	return html.Div(html.ID(sliderID), html.Class(class),
		html.H3(g.Text("Dashboard settings")),
		g.If(d != nil, g.Group{
			html.P(html.Strong(g.Text("ID: ")), g.Text(idOf(d))),
			html.P(html.Strong(g.Text("Created by: ")), g.Text(d.CreatedBy)),
			html.P(html.Strong(g.Text("Updated: ")), g.Text(d.UpdatedAt.Format(dateLayout))),
		}),
	)
}

// viewURL addresses an endpoint of dashboard id on behalf of one open view.
func viewURL(id, suffix, viewID string) string {
	return route.DashboardPath(id) + suffix + "?" + viewParam + "=" + url.QueryEscape(viewID)
}

func idOf(d *core.Dashboard) string {
	if d == nil {
		return ""
	}
	return d.ID
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
