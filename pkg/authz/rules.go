// Package authz implements the permission rule evaluator and the
// authorization gate: per-operation, optionally per-row decisions over an
// ordered rule list.
package authz

// Operation is a table operation subject to authorization.
type Operation string

const (
	OperationSelect Operation = "SELECT"
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// RuleKind tags the Rule union. Dispatch over kinds is exhaustive; an
// unknown kind is an error, never a silent no-op.
type RuleKind string

const (
	RulePublic     RuleKind = "public"
	RulePrivate    RuleKind = "private"
	RuleRole       RuleKind = "role"
	RuleAuth       RuleKind = "auth"
	RuleGuest      RuleKind = "guest"
	RuleLabels     RuleKind = "labels"
	RuleTeams      RuleKind = "teams"
	RuleStatic     RuleKind = "static"
	RuleFieldCheck RuleKind = "fieldCheck"
	RuleCustomSQL  RuleKind = "customSql"
)

// Rule is one permission rule. Only the payload matching the kind is
// populated. Rules are immutable once handed to the evaluator.
type Rule struct {
	Allow RuleKind `json:"allow"`

	Roles      []string    `json:"roles,omitempty"`
	Labels     []string    `json:"labels,omitempty"`
	Teams      []string    `json:"teams,omitempty"`
	Value      *bool       `json:"value,omitempty"`
	SQL        string      `json:"sql,omitempty"`
	FieldCheck *FieldCheck `json:"fieldCheck,omitempty"`
}

// CheckOperator is the comparison applied by a fieldCheck rule.
type CheckOperator string

const (
	CheckEquals    CheckOperator = "==="
	CheckNotEquals CheckOperator = "!=="
	CheckIn        CheckOperator = "in"
	CheckNotIn     CheckOperator = "notIn"
)

// ValueSource selects where a fieldCheck's comparison value comes from.
type ValueSource string

const (
	SourceLiteral     ValueSource = "literal"
	SourceUserContext ValueSource = "userContext"
)

// FieldCheck compares a row field against a literal or a user-context field.
type FieldCheck struct {
	Field     string        `json:"field"`
	Operator  CheckOperator `json:"operator"`
	ValueType ValueSource   `json:"valueType"`
	Value     any           `json:"value"`
}

// TablePermissions maps each operation on one table to its ordered rule
// list. A missing operation entry means table-level denial for that
// operation; a present entry with an empty list means unconditional allow.
type TablePermissions struct {
	Table string               `json:"table"`
	Rules map[Operation][]Rule `json:"rules"`
}

// HasFieldCheck reports whether any rule in the list is a fieldCheck rule,
// which switches the gate into per-row evaluation.
func HasFieldCheck(rules []Rule) bool {
	for _, rule := range rules {
		if rule.Allow == RuleFieldCheck {
			return true
		}
	}
	return false
}
