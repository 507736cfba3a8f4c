// Package gate evaluates gating rules against a comparison result.
// The comparator only reports indicators; what counts as blocking for a
// CI/CD pipeline is decided here, by configuration.
package gate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iriusrisk/iriusrisk-cli-sub001/diff"
)

// RuleType defines what a gating rule inspects.
type RuleType string

const (
	RuleCriticalRemovals  RuleType = "critical_removals"
	RuleSeverityIncreases RuleType = "severity_increases"
	RuleNewComponents     RuleType = "new_components"
	RuleMaxAddedThreats   RuleType = "max_added_threats"
)

// Severity defines how hard a rule blocks.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Decision is the gate outcome.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// Rule defines one gating rule.
type Rule struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        RuleType `json:"type" yaml:"type"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Threshold   int      `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// Violation represents a blocking rule hit.
type Violation struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Warning represents a non-blocking rule hit.
type Warning struct {
	RuleID  string `json:"ruleId"`
	Message string `json:"message"`
}

// Result is the gate evaluation outcome.
type Result struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	Warnings    []Warning   `json:"warnings"`
	RulesRan    int         `json:"rulesRan"`
	EvaluatedAt time.Time   `json:"evaluatedAt"`
}

// Engine evaluates gating rules against comparison results.
type Engine struct {
	rules []Rule
}

// NewEngine creates a gate engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// AddRule adds a custom rule.
func (e *Engine) AddRule(r Rule) {
	e.rules = append(e.rules, r)
}

// LoadRules replaces the rule set with one loaded from a YAML file.
func (e *Engine) LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read gate config: %w", err)
	}
	var cfg struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse gate config: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return fmt.Errorf("gate config %s defines no rules", path)
	}
	e.rules = cfg.Rules
	return nil
}

// Evaluate runs every enabled rule against the comparison result.
func (e *Engine) Evaluate(result *diff.ComparisonResult) *Result {
	out := &Result{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		Warnings:    make([]Warning, 0),
		EvaluatedAt: time.Now().UTC(),
	}

	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		out.RulesRan++

		message := e.evaluateRule(rule, result)
		if message == "" {
			continue
		}
		if rule.Severity == SeverityError {
			out.Violations = append(out.Violations, Violation{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Message:  message,
				Severity: string(rule.Severity),
			})
			out.Decision = DecisionDeny
			continue
		}
		out.Warnings = append(out.Warnings, Warning{RuleID: rule.ID, Message: message})
		if out.Decision == DecisionPass {
			out.Decision = DecisionWarn
		}
	}

	return out
}

// evaluateRule returns a hit message, or "" when the rule passes.
func (e *Engine) evaluateRule(rule Rule, result *diff.ComparisonResult) string {
	indicators := result.Summary.RiskIndicators

	switch rule.Type {
	case RuleCriticalRemovals:
		if indicators.HasCriticalRemovals {
			return fmt.Sprintf("%d implemented countermeasure(s) removed",
				len(result.Security.Countermeasures.CriticalRemovals))
		}
	case RuleSeverityIncreases:
		if indicators.HasSeverityIncreases {
			return fmt.Sprintf("%d threat(s) increased in severity",
				len(result.Security.Threats.SeverityIncreases))
		}
	case RuleNewComponents:
		if indicators.HasNewComponents {
			return fmt.Sprintf("%d new component(s) introduced",
				len(result.Architecture.Components.Added))
		}
	case RuleMaxAddedThreats:
		if added := len(result.Security.Threats.Added); added > rule.Threshold {
			return fmt.Sprintf("%d new threat(s) exceed the limit of %d", added, rule.Threshold)
		}
	}
	return ""
}

func defaultRules() []Rule {
	return []Rule{
		{
			ID:          "gate-critical-removals",
			Name:        "No implemented countermeasure removals",
			Description: "Block when an implemented countermeasure disappears from the model",
			Type:        RuleCriticalRemovals,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			ID:          "gate-severity-increases",
			Name:        "No severity increases",
			Description: "Block when an existing threat's risk rating goes up",
			Type:        RuleSeverityIncreases,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			ID:          "gate-new-components",
			Name:        "Review new components",
			Description: "Warn when the architecture gains components",
			Type:        RuleNewComponents,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
	}
}
