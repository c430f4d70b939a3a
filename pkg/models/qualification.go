package models

import "time"

type QualificationResult string

const (
	ResultQualified     QualificationResult = "QUALIFIED"
	ResultNotQualified  QualificationResult = "NOT_QUALIFIED"
	ResultNotApplicable QualificationResult = "NOT_APPLICABLE"
)

type Transition string

const (
	TransitionNone         Transition = "none"
	TransitionQualified    Transition = "qualified"
	TransitionDisqualified Transition = "disqualified"
)

// Outcome is the result of evaluating a record against the tenant's active rules.
type Outcome struct {
	TenantID       string              `json:"tenant_id"`
	EntityKind     EntityKind          `json:"entity_kind"`
	EntityID       string              `json:"entity_id"`
	Result         QualificationResult `json:"result"`
	EvaluatedRules int                 `json:"evaluated_rules"`
	FailedRuleID   string              `json:"failed_rule_id,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	EvaluatedAt    time.Time           `json:"evaluated_at"`
	// Rules is only filled when every rule was evaluated for explanation
	Rules []RuleResult `json:"rules,omitempty"`
}

// RuleResult explains how a single rule evaluated.
type RuleResult struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Passed   bool   `json:"passed"`
	Operand  any    `json:"operand"`
	Warning  string `json:"warning,omitempty"`
}

// TransitionFrom tells the caller how the qualification flag should move.
// NOT_APPLICABLE leaves the flag alone.
func (o Outcome) TransitionFrom(previouslyQualified bool) Transition {
	switch {
	case o.Result == ResultQualified && !previouslyQualified:
		return TransitionQualified
	case o.Result == ResultNotQualified && previouslyQualified:
		return TransitionDisqualified
	default:
		return TransitionNone
	}
}

// ValuesChangedEvent is published after custom values of a record are written or removed.
type ValuesChangedEvent struct {
	TenantID            string         `json:"tenant_id"`
	EntityKind          EntityKind     `json:"entity_kind"`
	EntityID            string         `json:"entity_id"`
	FieldDefinitionIDs  []string       `json:"field_definition_ids"`
	PreviouslyQualified *bool          `json:"previously_qualified,omitempty"`
	Record              map[string]any `json:"record,omitempty"`
	RequestID           string         `json:"request_id,omitempty"`
	ChangedAt           time.Time      `json:"changed_at"`
}

// QualificationEvaluatedEvent is published by the qualification worker.
type QualificationEvaluatedEvent struct {
	Outcome    Outcome    `json:"outcome"`
	Transition Transition `json:"transition,omitempty"`
	RequestID  string     `json:"request_id,omitempty"`
}
