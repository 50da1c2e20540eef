// Package onboarding implements the getting-started wizard: the user picks a
// module and walks through its setup steps.
package onboarding

import (
	"fmt"
	"slices"
)

// ModuleID identifies an onboarding module.
type ModuleID string

// Available modules.
const (
	APM                      ModuleID = "APM"
	LogsManagement           ModuleID = "LogsManagement"
	InfrastructureMonitoring ModuleID = "InfrastructureMonitoring"
)

// Module describes a use case offered by the wizard.
type Module struct {
	ID       ModuleID
	Title    string
	Desc     string
	StepDesc string
}

// Step is one page of a module's setup.
type Step struct {
	ID    string
	Title string
}

const defaultStepDesc = "Configure data source"

var modules = []Module{
	{
		ID:       APM,
		Title:    "Application Monitoring",
		Desc:     "Monitor application metrics like p99 latency, error rates, external API calls, and db calls.",
		StepDesc: defaultStepDesc,
	},
	{
		ID:       LogsManagement,
		Title:    "Logs Management",
		Desc:     "Easily filter and query logs, build dashboards and alerts based on attributes in logs",
		StepDesc: "Choose the logs that you want to receive",
	},
	{
		ID:       InfrastructureMonitoring,
		Title:    "Infrastructure Monitoring",
		Desc:     "Monitor Kubernetes infrastructure metrics, hostmetrics, or metrics of any third-party integration",
		StepDesc: defaultStepDesc,
	},
}

var (
	stepDataSource     = Step{ID: "data-source", Title: "Data Source"}
	stepEnvironment    = Step{ID: "environment-details", Title: "Environment Details"}
	stepSelectMethod   = Step{ID: "select-method", Title: "Select Method"}
	stepOtelCollector  = Step{ID: "setup-otel-collector", Title: "Setup Otel Collector"}
	stepInstallOtel    = Step{ID: "install-opentelemetry", Title: "Install OpenTelemetry"}
	stepRunApplication = Step{ID: "run-application", Title: "Run Application"}
	stepTestConnection = Step{ID: "test-connection", Title: "Test Connection"}
)

var moduleSteps = map[ModuleID][]Step{
	APM: {
		stepDataSource, stepEnvironment, stepSelectMethod, stepOtelCollector,
		stepInstallOtel, stepRunApplication, stepTestConnection,
	},
	LogsManagement: {
		stepDataSource, stepEnvironment, stepOtelCollector,
		stepInstallOtel, stepRunApplication, stepTestConnection,
	},
	InfrastructureMonitoring: {
		stepDataSource, stepEnvironment, stepOtelCollector,
		stepInstallOtel, stepRunApplication, stepTestConnection,
	},
}

var completionRoutes = map[ModuleID]string{
	APM:                      "/application",
	LogsManagement:           "/logs",
	InfrastructureMonitoring: "/application",
}

// DefaultLogsType is the log source preselected for log management.
const DefaultLogsType = "kubernetes"

// verifiableLogsTypes are log sources whose connection can be tested.
var verifiableLogsTypes = []string{"kubernetes", "docker"}

// Modules returns the modules in display order.
func Modules() []Module {
	return slices.Clone(modules)
}

// LookupModule returns the module with id.
func LookupModule(id ModuleID) (Module, bool) {
	for _, m := range modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// StepsFor returns the setup steps of module id.
func StepsFor(id ModuleID) []Step {
	return slices.Clone(moduleSteps[id])
}

// Wizard is the position of one user in the onboarding flow. The zero value
// is not usable; call New. Wizard holds only plain fields so it can be
// stored in a session.
type Wizard struct {
	Module   ModuleID
	Step     int
	LogsType string
}

// New returns a wizard on the first step of the APM module.
func New() *Wizard {
	return &Wizard{Module: APM, LogsType: DefaultLogsType}
}

// SelectModule switches to module id and resets to its first step.
func (w *Wizard) SelectModule(id ModuleID) error {
	if _, ok := LookupModule(id); !ok {
		return fmt.Errorf("unknown onboarding module %q", id)
	}
	w.Module = id
	w.Step = 0
	return nil
}

// SelectLogsType records the log source picked in the logs module.
func (w *Wizard) SelectLogsType(logsType string) {
	w.LogsType = logsType
}

// CanVerifyConnection reports whether the test connection step can check
// for incoming data. Only some log sources support it.
func (w *Wizard) CanVerifyConnection() bool {
	if w.Module != LogsManagement {
		return true
	}
	return slices.Contains(verifiableLogsTypes, w.LogsType)
}

// Steps returns the steps of the selected module.
func (w *Wizard) Steps() []Step {
	return StepsFor(w.Module)
}

// Current returns the active step.
func (w *Wizard) Current() Step {
	steps := moduleSteps[w.Module]
	if len(steps) == 0 {
		return Step{}
	}
	return steps[w.clamp(w.Step)]
}

// Next moves forward one step and reports whether it moved.
func (w *Wizard) Next() bool {
	return w.Jump(w.Step + 1)
}

// Prev moves back one step and reports whether it moved.
func (w *Wizard) Prev() bool {
	return w.Jump(w.Step - 1)
}

// Jump moves to step, clamped to the selected module's steps. It reports
// whether the position changed.
func (w *Wizard) Jump(step int) bool {
	next := w.clamp(step)
	if next == w.Step {
		return false
	}
	w.Step = next
	return true
}

// IsFirst reports whether the wizard is on the first step.
func (w *Wizard) IsFirst() bool {
	return w.clamp(w.Step) == 0
}

// IsLast reports whether the wizard is on the last step.
func (w *Wizard) IsLast() bool {
	return w.clamp(w.Step) == len(moduleSteps[w.Module])-1
}

// Complete returns the page to open when the user finishes the wizard.
func (w *Wizard) Complete() string {
	if route, ok := completionRoutes[w.Module]; ok {
		return route
	}
	return "/application"
}

func (w *Wizard) clamp(step int) int {
	n := len(moduleSteps[w.Module])
	switch {
	case n == 0 || step < 0:
		return 0
	case step >= n:
		return n - 1
	default:
		return step
	}
}
