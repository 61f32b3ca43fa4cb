package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalLeaf compiles one comparison through a registry and evaluates it.
func evalLeaf(t *testing.T, criteria []CriterionDefinition, condition string, ctx Context) (bool, error) {
	t.Helper()

	expr, err := Parse(condition)
	require.NoError(t, err)
	c, ok := expr.(*Comparison)
	require.True(t, ok, "condition must be a single comparison")

	sch, err := newSchema(criteria)
	require.NoError(t, err)
	idx, err := newRegistry(sch).getOrCreate(c.Criterion, c.Operator)
	require.NoError(t, err)
	compiled, err := idx.Compile(c.Operand)
	require.NoError(t, err)

	return idx.Evaluate(compiled, ctx)
}

func TestCompareIndex_Permissive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		condition string
		value     Value
		want      bool
	}{
		// --- Strings ---
		{name: "String equality", condition: "country == 'CA'", value: StringValue("CA"), want: true},
		{name: "String equality is case-sensitive", condition: "country == 'CA'", value: StringValue("ca"), want: false},
		{name: "String inequality", condition: "country != 'CA'", value: StringValue("US"), want: true},
		{name: "Lexical ordering", condition: "country < 'M'", value: StringValue("CA"), want: true},

		// --- Numbers ---
		{name: "Number equality", condition: "age == 18", value: NumberValue(18), want: true},
		{name: "Number ordering", condition: "age >= 18", value: NumberValue(17.5), want: false},
		{name: "Numeric string context is coerced", condition: "age > 18", value: StringValue("21"), want: true},
		{name: "Numeric string operand is coerced", condition: "age == '18'", value: NumberValue(18), want: true},
		{name: "Non-numeric string against number is incomparable", condition: "age < 18", value: StringValue("old"), want: false},

		// --- Versions ---
		{name: "Version ordering beats lexical ordering", condition: "appVersion >= '2.0.0'", value: StringValue("10.0.0"), want: true},
		{name: "Version with v prefix", condition: "appVersion < 'v2.1.0'", value: StringValue("2.0.9"), want: true},
		{name: "Version equality ignores prefix", condition: "appVersion == '2.1.0'", value: StringValue("v2.1.0"), want: true},
		{name: "Version inequality ignores prefix", condition: "appVersion != '2.1.0'", value: StringValue("v2.1.0"), want: false},
		{name: "Version equality ignores missing patch", condition: "appVersion == '2.0'", value: StringValue("2.0.0"), want: true},
		{name: "Different versions are unequal", condition: "appVersion != '2.0'", value: StringValue("2.0.1"), want: true},
		{name: "Prerelease sorts before release", condition: "appVersion < '2.0.0'", value: StringValue("2.0.0-beta.1"), want: true},

		// --- Bools ---
		{name: "Bool equality", condition: "beta == true", value: BoolValue(true), want: true},
		{name: "Bool vs string is unequal", condition: "beta == true", value: StringValue("true"), want: false},
		{name: "Bool inequality across kinds", condition: "beta != true", value: StringValue("true"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalLeaf(t, nil, tt.condition, Context{firstWord(tt.condition): tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareIndex_EqualityAgreesWithOrdering(t *testing.T) {
	t.Parallel()

	pairs := []struct{ operand, value string }{
		{"2.1.0", "v2.1.0"},
		{"2.0", "2.0.0"},
		{"v3", "3.0.0"},
		{"2.0.0", "2.0.1"},
		{"CA", "CA"},
		{"CA", "US"},
	}

	for _, p := range pairs {
		t.Run(p.operand+" vs "+p.value, func(t *testing.T) {
			ctx := Context{"v": StringValue(p.value)}
			eval := func(op string) bool {
				got, err := evalLeaf(t, nil, "v "+op+" '"+p.operand+"'", ctx)
				require.NoError(t, err)
				return got
			}

			both := eval("<=") && eval(">=")
			assert.Equal(t, both, eval("=="), "== must hold exactly when <= and >= do")
			assert.Equal(t, !eval("=="), eval("!="))
		})
	}
}

func TestCompareIndex_Typed(t *testing.T) {
	t.Parallel()

	criteria := []CriterionDefinition{
		{Name: "appVersion", Kind: CriterionVersion},
		{Name: "age", Kind: CriterionNumber},
		{Name: "userId", Kind: CriterionID},
	}

	tests := []struct {
		name      string
		condition string
		value     Value
		want      bool
	}{
		{name: "Version criterion compares two-part versions", condition: "appVersion > '2.0'", value: StringValue("2.0.1"), want: true},
		{name: "Version criterion equal after canonicalisation", condition: "appVersion == '2'", value: StringValue("v2.0.0"), want: true},
		{name: "Version criterion rejects garbage context", condition: "appVersion >= '1.0.0'", value: StringValue("latest"), want: false},
		{name: "Number criterion coerces strings", condition: "age < 30", value: StringValue("29"), want: true},
		{name: "ID criterion compares text", condition: "userId == 42", value: StringValue("42"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalLeaf(t, criteria, tt.condition, Context{firstWord(tt.condition): tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		criteria  []CriterionDefinition
		condition string
		value     Value
		want      bool
	}{
		{name: "Member", condition: "plan one_of 'pro, team'", value: StringValue("team"), want: true},
		{name: "Not a member", condition: "plan one_of 'pro,team'", value: StringValue("free"), want: false},
		{name: "Empty members are ignored", condition: "plan one_of 'pro,,'", value: StringValue(""), want: false},
		{name: "Numbers match their text", condition: "tier one_of '1,2'", value: NumberValue(2), want: true},
		{
			name:      "Number criterion normalizes members",
			criteria:  []CriterionDefinition{{Name: "tier", Kind: CriterionNumber}},
			condition: "tier one_of '1.0, 2'",
			value:     StringValue("1"),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalLeaf(t, tt.criteria, tt.condition, Context{firstWord(tt.condition): tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndex_MissingAttribute(t *testing.T) {
	t.Parallel()

	for _, condition := range []string{
		"country == 'CA'",
		"age > 18",
		"plan one_of 'pro'",
		"country randomly_selected '100%'",
	} {
		t.Run(condition, func(t *testing.T) {
			got, err := evalLeaf(t, nil, condition, Context{"other": StringValue("x")})

			var missing *MissingAttributeError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, firstWord(condition), missing.Criterion)
			assert.False(t, got)
		})
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Parallel()

	t.Run("One index per criterion and operator", func(t *testing.T) {
		r := newRegistry(&schema{})

		a, err := r.getOrCreate("country", OpEqual)
		require.NoError(t, err)
		b, err := r.getOrCreate("country", OpEqual)
		require.NoError(t, err)
		c, err := r.getOrCreate("country", OpNotEqual)
		require.NoError(t, err)

		assert.Same(t, a, b)
		assert.NotSame(t, a, c)
		assert.Equal(t, []IndexInfo{
			{Criterion: "country", Operator: OpNotEqual},
			{Criterion: "country", Operator: OpEqual},
		}, r.list())
	})

	sch, err := newSchema([]CriterionDefinition{
		{Name: "country", Kind: CriterionString},
		{Name: "beta", Kind: CriterionBool},
		{Name: "appVersion", Kind: CriterionVersion},
		{Name: "userId", Kind: CriterionID},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		criterion string
		operator  string
		wantErr   bool
	}{
		{name: "String equality", criterion: "country", operator: OpEqual},
		{name: "String set", criterion: "country", operator: OpOneOf},
		{name: "String ordering is rejected", criterion: "country", operator: OpLess, wantErr: true},
		{name: "Bool ordering is rejected", criterion: "beta", operator: OpGreater, wantErr: true},
		{name: "Version ordering", criterion: "appVersion", operator: OpGreaterOrEqual},
		{name: "Version bucketing is rejected", criterion: "appVersion", operator: OpRandomlySelected, wantErr: true},
		{name: "ID bucketing", criterion: "userId", operator: OpRandomlySelected},
		{name: "Unknown criterion is rejected", criterion: "planet", operator: OpEqual, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRegistry(sch).getOrCreate(tt.criterion, tt.operator)
			if tt.wantErr {
				var se *SchemaError
				assert.ErrorAs(t, err, &se)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewSchema_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		defs []CriterionDefinition
	}{
		{name: "Empty name", defs: []CriterionDefinition{{Kind: CriterionString}}},
		{name: "Unknown kind", defs: []CriterionDefinition{{Name: "a", Kind: "date"}}},
		{name: "Duplicate", defs: []CriterionDefinition{{Name: "a", Kind: CriterionString}, {Name: "a", Kind: CriterionNumber}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSchema(tt.defs)
			var se *SchemaError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestCompile_OperandKind(t *testing.T) {
	t.Parallel()

	criteria := []CriterionDefinition{
		{Name: "age", Kind: CriterionNumber},
		{Name: "appVersion", Kind: CriterionVersion},
		{Name: "beta", Kind: CriterionBool},
		{Name: "country", Kind: CriterionString},
	}
	sch, err := newSchema(criteria)
	require.NoError(t, err)

	for _, condition := range []string{
		"age > 'old'",
		"appVersion >= 'latest'",
		"beta == 'yes'",
		"country == 1",
		"age one_of 'a,b'",
	} {
		t.Run(condition, func(t *testing.T) {
			expr, err := Parse(condition)
			require.NoError(t, err)
			c := expr.(*Comparison)

			idx, err := newRegistry(sch).getOrCreate(c.Criterion, c.Operator)
			require.NoError(t, err)
			_, err = idx.Compile(c.Operand)

			var se *SchemaError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func firstWord(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i]
		}
	}
	return s
}
