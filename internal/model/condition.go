package model

// CompareOp is a comparison operator applied to an entry field
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpGT
	OpGE
	OpLT
	OpLE
)

// String returns the operator's symbolic name
func (op CompareOp) String() string {
	switch op {
	case OpEQ:
		return "eq"
	case OpNE:
		return "ne"
	case OpGT:
		return "gt"
	case OpGE:
		return "ge"
	case OpLT:
		return "lt"
	case OpLE:
		return "le"
	default:
		return "unknown"
	}
}

// FieldCondition is a single predicate over one field
type FieldCondition struct {
	Field string
	Op    CompareOp
	Value string
}

// Condition is a conjunction of field predicates. An empty condition matches
// every entry, including deleted ones; callers that need liveness must supply
// at least one predicate.
type Condition struct {
	conds []FieldCondition
}

// NewCondition creates a new empty condition
func NewCondition() *Condition {
	return &Condition{}
}

// EQ adds an equality predicate and returns the condition for chaining
func (c *Condition) EQ(field, value string) *Condition {
	return c.add(field, OpEQ, value)
}

// NE adds an inequality predicate
func (c *Condition) NE(field, value string) *Condition {
	return c.add(field, OpNE, value)
}

// GT adds a numeric greater-than predicate
func (c *Condition) GT(field, value string) *Condition {
	return c.add(field, OpGT, value)
}

// GE adds a numeric greater-or-equal predicate
func (c *Condition) GE(field, value string) *Condition {
	return c.add(field, OpGE, value)
}

// LT adds a numeric less-than predicate
func (c *Condition) LT(field, value string) *Condition {
	return c.add(field, OpLT, value)
}

// LE adds a numeric less-or-equal predicate
func (c *Condition) LE(field, value string) *Condition {
	return c.add(field, OpLE, value)
}

func (c *Condition) add(field string, op CompareOp, value string) *Condition {
	c.conds = append(c.conds, FieldCondition{Field: field, Op: op, Value: value})
	return c
}

// Conditions returns the predicates in the order they were added
func (c *Condition) Conditions() []FieldCondition {
	if c == nil {
		return nil
	}
	return c.conds
}

// Empty reports whether the condition has no predicates
func (c *Condition) Empty() bool {
	return c == nil || len(c.conds) == 0
}
