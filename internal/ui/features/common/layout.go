package common

import (
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"github.com/leapstack-labs/leapboard/internal/ui/resources"
)

// Page wraps body in the application shell.
func Page(title string, s *Session, body ...g.Node) g.Node {
	return html.Doctype(
		html.HTML(html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(g.Text(title+" | leapboard")),
				html.Link(html.Rel("stylesheet"), html.Href(resources.StaticPath("app.css"))),
				html.Script(html.Type("module"), html.Src(resources.DatastarScript)),
			),
			html.Body(
				topbar(s),
				html.Main(body...),
			),
		),
	)
}

func topbar(s *Session) g.Node {
	return html.Header(html.Class("topbar"),
		html.Nav(
			html.A(html.Href("/dashboard"), g.Text("Dashboards")),
			g.Text(" · "),
			html.A(html.Href("/onboarding"), g.Text("Get Started")),
		),
		g.If(s.Authenticated(),
			html.Form(html.Method("post"), html.Action("/logout"),
				html.Span(html.Class("muted"), g.Text(s.User()+" ")),
				html.Button(html.Type("submit"), g.Text("Sign out")),
			),
		),
		g.If(!s.Authenticated(),
			html.A(html.Href("/login"), g.Text("Sign in")),
		),
	)
}

// ErrorMessage renders msg as an inline error.
func ErrorMessage(msg string) g.Node {
	return html.P(html.Class("error"), g.Text(msg))
}

// Datastar renders a datastar attribute such as data-on:click.
func Datastar(name, value string) g.Node {
	return g.Attr("data-"+name, value)
}
