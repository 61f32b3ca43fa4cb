package ruleengine

import (
	"fmt"
	"slices"
	"strings"
)

// CriterionKind declares how an attribute may be compared.
type CriterionKind string

const (
	// CriterionString supports equality and set membership only.
	CriterionString CriterionKind = "string"
	// CriterionNumber supports every comparison and set membership.
	CriterionNumber CriterionKind = "number"
	// CriterionVersion supports equality and ordering using semantic versions.
	CriterionVersion CriterionKind = "version"
	// CriterionBool supports equality only.
	CriterionBool CriterionKind = "bool"
	// CriterionID identifies an entity; it is the only kind usable for
	// percentage bucketing.
	CriterionID CriterionKind = "id"
)

var kindOperators = map[CriterionKind][]string{
	CriterionString:  {OpEqual, OpNotEqual, OpOneOf},
	CriterionNumber:  {OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpOneOf},
	CriterionVersion: {OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual},
	CriterionBool:    {OpEqual, OpNotEqual},
	CriterionID:      {OpEqual, OpNotEqual, OpOneOf, OpRandomlySelected},
}

// CriterionDefinition declares one attribute that rules may test.
type CriterionDefinition struct {
	Name        string        `json:"name" yaml:"name"`
	Kind        CriterionKind `json:"kind" yaml:"kind"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// schema maps criterion names to kinds. An empty schema accepts any
// attribute with any operator.
type schema struct {
	kinds map[string]CriterionKind
}

func newSchema(defs []CriterionDefinition) (*schema, error) {
	s := &schema{kinds: make(map[string]CriterionKind, len(defs))}
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, &SchemaError{Msg: "criterion name is required"}
		}
		if _, ok := kindOperators[d.Kind]; !ok {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q has unknown kind %q", name, d.Kind)}
		}
		if _, dup := s.kinds[name]; dup {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q declared twice", name)}
		}
		s.kinds[name] = d.Kind
	}
	return s, nil
}

func (s *schema) strict() bool { return len(s.kinds) > 0 }

// kindOf returns the declared kind of criterion. The empty kind means the
// schema is permissive and the criterion is undeclared.
func (s *schema) kindOf(criterion string) (CriterionKind, error) {
	if !s.strict() {
		return "", nil
	}
	k, ok := s.kinds[criterion]
	if !ok {
		return "", &SchemaError{Msg: fmt.Sprintf("unknown criterion %q", criterion)}
	}
	return k, nil
}

// allows reports whether operator may be applied to a criterion of kind k.
func (k CriterionKind) allows(operator string) bool {
	if k == "" {
		return true
	}
	return slices.Contains(kindOperators[k], operator)
}
