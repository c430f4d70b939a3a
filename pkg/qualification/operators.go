package qualification

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/values"
)

// Comparisons converts a rule's comparison values into canonical form through the
// operand's declared type. Values that cannot be coerced are returned in rejected.
func Comparisons(operator models.Operator, declaredType models.DeclaredType, raw []string) (accepted []values.CanonicalValue, rejected []string) {
	elementType := declaredType
	switch {
	case declaredType.IsList():
		// list items compare against plain strings
		elementType = models.DeclaredTypeShortText
	case operator.IsSearch() && declaredType.StorageColumn() == models.ColumnText:
		// fragments of a phone or tax id are not valid values on their own
		elementType = models.DeclaredTypeShortText
	}
	for _, r := range raw {
		canonical, err := values.Canonicalize(elementType, r)
		if err != nil || canonical.IsAbsent() {
			rejected = append(rejected, r)
			continue
		}
		accepted = append(accepted, canonical)
	}
	return accepted, rejected
}

// Apply evaluates an operator. An absent operand fails every operator except
// is_empty and is_not_empty, and so does a comparison operator with nothing to compare to.
func Apply(operator models.Operator, operand values.CanonicalValue, comparisons []values.CanonicalValue) bool {
	switch operator {
	case models.OperatorIsEmpty:
		return operand.IsEmpty()
	case models.OperatorIsNotEmpty:
		return !operand.IsEmpty()
	}

	if operand.IsAbsent() || len(comparisons) == 0 {
		return false
	}

	switch operator {
	case models.OperatorEquals:
		return equals(operand, comparisons)
	case models.OperatorNotEquals:
		return !equals(operand, comparisons)
	case models.OperatorContains:
		return searchable(operand) && contains(operand, comparisons)
	case models.OperatorNotContains:
		return searchable(operand) && !contains(operand, comparisons)
	case models.OperatorGreaterThan:
		return order(operand, comparisons[0], func(c int) bool { return c > 0 })
	case models.OperatorLessThan:
		return order(operand, comparisons[0], func(c int) bool { return c < 0 })
	case models.OperatorGreaterOrEqual:
		return order(operand, comparisons[0], func(c int) bool { return c >= 0 })
	case models.OperatorLessOrEqual:
		return order(operand, comparisons[0], func(c int) bool { return c <= 0 })
	default:
		return false
	}
}

// equals matches any of the comparisons. A list operand equals the comparisons
// when both hold the same set of items.
func equals(operand values.CanonicalValue, comparisons []values.CanonicalValue) bool {
	if operand.Kind == values.KindList {
		return sameSet(operand.List, comparisons)
	}
	for _, comparison := range comparisons {
		if operand.Equal(comparison) {
			return true
		}
	}
	return false
}

// searchable operands are strings and lists; any other kind fails both substring operators.
func searchable(operand values.CanonicalValue) bool {
	return operand.Kind == values.KindString || operand.Kind == values.KindList
}

// contains is true when any comparison is a substring or member of the operand.
func contains(operand values.CanonicalValue, comparisons []values.CanonicalValue) bool {
	for _, comparison := range comparisons {
		if operand.Contains(comparison) {
			return true
		}
	}
	return false
}

func order(operand, comparison values.CanonicalValue, accept func(int) bool) bool {
	result, ok := operand.Compare(comparison)
	if !ok {
		return false
	}
	return accept(result)
}

func sameSet(items []string, comparisons []values.CanonicalValue) bool {
	want := map[string]bool{}
	for _, comparison := range comparisons {
		if comparison.Kind != values.KindString {
			return false
		}
		want[comparison.String] = true
	}
	have := map[string]bool{}
	for _, item := range items {
		if !want[item] {
			return false
		}
		have[item] = true
	}
	return len(have) == len(want)
}
