package ruleengine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// bucketCount is the resolution of percentage rollouts: 10000 buckets give
// basis-point granularity, so '0.25%' canary releases are expressible.
const bucketCount = 10_000

// bucketIndex implements randomly_selected. It uses consistent hashing
// (Murmur3) so the same subject always falls into the same bucket for a
// given operand (stickiness).
//
//	userId randomly_selected '10%'           salt defaults to the criterion name
//	userId randomly_selected '10%:checkout'  explicit salt
type bucketIndex struct {
	criterion string
}

// bucketRule is the compiled operand.
type bucketRule struct {
	// BasisPoints is the percentage times 100 (0..10000).
	BasisPoints uint32
	// Salt keeps rollouts that should be independent from selecting the
	// same subjects.
	Salt string
}

func (i *bucketIndex) Criterion() string { return i.criterion }
func (i *bucketIndex) Operator() string  { return OpRandomlySelected }

func (i *bucketIndex) Compile(operand Value) (any, error) {
	var raw string
	switch operand.Kind() {
	case KindString:
		raw = operand.Str()
	case KindNumber:
		raw = operand.Text()
	default:
		return nil, &SchemaError{Msg: fmt.Sprintf("randomly_selected operand must be a percentage, got %s", operand)}
	}

	pct, salt, _ := strings.Cut(raw, ":")
	pct = strings.TrimSuffix(strings.TrimSpace(pct), "%")
	f, err := strconv.ParseFloat(pct, 64)
	if err != nil {
		return nil, &SchemaError{Msg: fmt.Sprintf("invalid percentage %q", raw)}
	}
	if !(f >= 0 && f <= 100) {
		return nil, &SchemaError{Msg: fmt.Sprintf("percentage must be between 0 and 100, got %v", f)}
	}
	// Finer percentages would be rounded away by the bucket resolution.
	bp := math.Round(f * 100)
	if math.Abs(f*100-bp) > 1e-6 {
		return nil, &SchemaError{Msg: fmt.Sprintf("percentage %v has more than two decimals", f)}
	}

	salt = strings.TrimSpace(salt)
	if salt == "" {
		salt = i.criterion
	}
	return bucketRule{BasisPoints: uint32(bp), Salt: salt}, nil
}

// Evaluate hashes "subject:salt" and checks whether the bucket falls under
// the threshold. It allocates nothing beyond the hash key.
func (i *bucketIndex) Evaluate(operand any, ctx Context) (bool, error) {
	rule, ok := operand.(bucketRule)
	if !ok {
		return false, fmt.Errorf("invalid operand type: expected bucketRule, got %T", operand)
	}
	got, err := lookup(ctx, i.criterion)
	if err != nil {
		return false, err
	}

	subject := got.Text()
	// Empty subjects cannot be distributed; treat as not selected.
	if subject == "" {
		return false, nil
	}
	return Bucket(subject, rule.Salt) < rule.BasisPoints, nil
}

// Bucket maps a subject and salt to a bucket in [0, 10000).
// If the threshold is 1000 (10%), buckets 0 to 999 are selected.
func Bucket(subject, salt string) uint32 {
	return murmur3.Sum32([]byte(subject+":"+salt)) % bucketCount
}
