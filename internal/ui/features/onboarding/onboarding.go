// Package onboarding provides the getting-started wizard pages.
package onboarding

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"github.com/leapstack-labs/leapboard/internal/onboarding"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
)

const basePath = "/onboarding"

// Handlers provides HTTP handlers for the onboarding wizard. The wizard
// position lives in the session cookie.
type Handlers struct {
	logger *slog.Logger
}

// NewHandlers creates onboarding handlers.
func NewHandlers(logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger}
}

// SetupRoutes registers the onboarding routes.
func SetupRoutes(router chi.Router, logger *slog.Logger) {
	h := NewHandlers(logger)
	router.Route(basePath, func(r chi.Router) {
		r.Get("/", h.Page)
		r.Post("/module", h.SelectModule)
		r.Post("/next", h.Next)
		r.Post("/prev", h.Prev)
		r.Post("/step", h.Jump)
		r.Post("/logs-type", h.SelectLogsType)
		r.Post("/complete", h.Complete)
	})
}

// Page renders the wizard at the session's position.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	common.Render(w, http.StatusOK, wizardPage(s, s.Wizard(), ""))
}

// SelectModule switches the wizard to the posted module.
func (h *Handlers) SelectModule(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(wz *onboarding.Wizard) error {
		return wz.SelectModule(onboarding.ModuleID(r.PostForm.Get("module")))
	})
}

// Next moves one step forward.
func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(wz *onboarding.Wizard) error {
		wz.Next()
		return nil
	})
}

// Prev moves one step back.
func (h *Handlers) Prev(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(wz *onboarding.Wizard) error {
		wz.Prev()
		return nil
	})
}

// Jump moves to the posted step index.
func (h *Handlers) Jump(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(wz *onboarding.Wizard) error {
		step, err := strconv.Atoi(r.PostForm.Get("step"))
		if err != nil {
			return err
		}
		wz.Jump(step)
		return nil
	})
}

// SelectLogsType records the posted log source.
func (h *Handlers) SelectLogsType(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(wz *onboarding.Wizard) error {
		wz.SelectLogsType(r.PostForm.Get("logsType"))
		return nil
	})
}

// Complete ends the wizard and opens the module's landing page.
func (h *Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	wz := s.Wizard()
	h.logger.Debug("onboarding complete", "module", wz.Module)

	s.SetWizard(onboarding.New())
	if err := s.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.SeeOther(w, r, wz.Complete())
}

// update applies fn to the session's wizard, saves it and redirects back to
// the wizard page.
func (h *Handlers) update(w http.ResponseWriter, r *http.Request, fn func(*onboarding.Wizard) error) {
	s := common.SessionFrom(r.Context())
	wz := s.Wizard()

	if err := r.ParseForm(); err != nil {
		common.Render(w, http.StatusBadRequest, wizardPage(s, wz, err.Error()))
		return
	}
	if err := fn(wz); err != nil {
		common.Render(w, http.StatusBadRequest, wizardPage(s, wz, err.Error()))
		return
	}

	s.SetWizard(wz)
	if err := s.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.SeeOther(w, r, basePath)
}

func wizardPage(s *common.Session, wz *onboarding.Wizard, errMsg string) g.Node {
	return common.Page("Get Started", s,
		html.Div(html.Class("card"),
			html.H2(g.Text("Get Started")),
			g.If(errMsg != "", common.ErrorMessage(errMsg)),
			moduleCards(wz),
		),
		html.Div(html.Class("card"),
			stepList(wz),
			currentStep(wz),
			navigation(wz),
		),
	)
}

func moduleCards(wz *onboarding.Wizard) g.Node {
	return html.Div(html.Class("modules"),
		g.Map(onboarding.Modules(), func(m onboarding.Module) g.Node {
			class := "module"
			if m.ID == wz.Module {
				class += " selected"
			}
			return html.Form(html.Method("post"), html.Action(basePath+"/module"), html.Class(class),
				html.Input(html.Type("hidden"), html.Name("module"), html.Value(string(m.ID))),
				html.H3(g.Text(m.Title)),
				html.P(g.Text(m.Desc)),
				html.Button(html.Type("submit"), g.Text("Select")),
			)
		}),
	)
}

func stepList(wz *onboarding.Wizard) g.Node {
	return html.Ol(html.Class("steps"),
		g.Map(indexed(wz.Steps()), func(s indexedStep) g.Node {
			class := "step"
			if s.index == wz.Step {
				class += " current"
			}
			return html.Li(html.Class(class),
				html.Form(html.Method("post"), html.Action(basePath+"/step"),
					html.Input(html.Type("hidden"), html.Name("step"), html.Value(strconv.Itoa(s.index))),
					html.Button(html.Type("submit"), g.Attr("data-step", s.ID), g.Text(s.Title)),
				),
			)
		}),
	)
}

func currentStep(wz *onboarding.Wizard) g.Node {
	step := wz.Current()
	m, _ := onboarding.LookupModule(wz.Module)

	return html.Div(html.Class("step-body"), g.Attr("data-current-step", step.ID),
		html.H3(g.Text(step.Title)),
		html.P(html.Class("muted"), g.Text(m.StepDesc)),
		g.If(wz.Module == onboarding.LogsManagement && wz.IsFirst(), logsTypeForm(wz)),
		g.If(step.ID == "test-connection" && !wz.CanVerifyConnection(),
			html.P(html.Class("muted"), g.Text("Connection status is not available for this log source.")),
		),
	)
}

func logsTypeForm(wz *onboarding.Wizard) g.Node {
	return html.Form(html.Method("post"), html.Action(basePath+"/logs-type"),
		html.Select(html.Name("logsType"),
			g.Map([]string{"kubernetes", "docker", "syslog", "application_logs", "fluentBit", "fluentD", "logStash"}, func(v string) g.Node {
				return html.Option(html.Value(v), g.If(v == wz.LogsType, html.Selected()), g.Text(v))
			}),
		),
		html.Button(html.Type("submit"), g.Text("Use log source")),
	)
}

func navigation(wz *onboarding.Wizard) g.Node {
	return html.Div(html.Class("wizard-nav"),
		g.If(!wz.IsFirst(), postButton(basePath+"/prev", "Back")),
		g.If(!wz.IsLast(), postButton(basePath+"/next", "Continue")),
		g.If(wz.IsLast(), postButton(basePath+"/complete", "Done")),
	)
}

func postButton(action, label string) g.Node {
	return html.Form(html.Method("post"), html.Action(action),
		html.Button(html.Class("primary"), html.Type("submit"), g.Text(label)),
	)
}

type indexedStep struct {
	onboarding.Step
	index int
}

func indexed(steps []onboarding.Step) []indexedStep {
	out := make([]indexedStep, len(steps))
	for i, s := range steps {
		out[i] = indexedStep{Step: s, index: i}
	}
	return out
}
