package table

import (
	"strconv"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/model"
	"go.uber.org/zap"
)

// matchingIndexes applies the condition to every entry and returns the
// indexes of the matches in ascending order. An empty condition matches all
// entries, deleted ones included; callers that need liveness supply at least
// one predicate.
func matchingIndexes(entries *model.Entries, cond *model.Condition, logger *zap.Logger) []int {
	indexes := make([]int, 0, entries.Size())
	if cond.Empty() {
		for i := 0; i < entries.Size(); i++ {
			indexes = append(indexes, i)
		}
		return indexes
	}

	for i := 0; i < entries.Size(); i++ {
		if matchEntry(entries.Get(i), cond, logger) {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// matchEntry evaluates the conjunction against one entry. A deleted entry
// never matches a non-empty condition. A non-numeric value in an ordered
// comparison makes the entry a non-match; it is logged and does not abort
// the batch.
func matchEntry(entry *model.Entry, cond *model.Condition, logger *zap.Logger) bool {
	if entry.Status() == model.StatusDeleted {
		return false
	}

	for _, fc := range cond.Conditions() {
		lhs := entry.GetField(fc.Field)
		rhs := fc.Value

		switch fc.Op {
		case model.OpEQ:
			if lhs != rhs {
				return false
			}
		case model.OpNE:
			if lhs == rhs {
				return false
			}
		default:
			ok, err := compareNumeric(fc.Op, fc.Field, lhs, rhs)
			if err != nil {
				logger.Error("Condition compare failed",
					zap.String("op", fc.Op.String()),
					zap.Error(err))
				return false
			}
			if !ok {
				return false
			}
		}
	}
	return true
}

// compareNumeric evaluates an ordered comparison with both sides parsed as
// decimal integers. The empty string coerces to "0".
func compareNumeric(op model.CompareOp, field, lhs, rhs string) (bool, error) {
	if lhs == "" {
		lhs = "0"
	}
	if rhs == "" {
		rhs = "0"
	}

	lhsNum, err := strconv.Atoi(lhs)
	if err != nil {
		return false, errors.BadCondition(field, lhs, err)
	}
	rhsNum, err := strconv.Atoi(rhs)
	if err != nil {
		return false, errors.BadCondition(field, rhs, err)
	}

	switch op {
	case model.OpGT:
		return lhsNum > rhsNum, nil
	case model.OpGE:
		return lhsNum >= rhsNum, nil
	case model.OpLT:
		return lhsNum < rhsNum, nil
	case model.OpLE:
		return lhsNum <= rhsNum, nil
	default:
		return true, nil
	}
}
