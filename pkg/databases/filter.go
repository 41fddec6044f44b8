package databases

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// buildFilter translates the map filter language into a qdrant filter.
// Unsupported values are skipped rather than failing the query.
func buildFilter(filter map[string]interface{}) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		if ops, ok := value.(map[string]interface{}); ok {
			conditions = append(conditions, operatorConditions(key, ops)...)
			continue
		}
		if cond := equalityCondition(key, value); cond != nil {
			conditions = append(conditions, cond)
		}
	}

	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func equalityCondition(key string, value interface{}) *qdrant.Condition {
	val, err := qdrant.NewValue(value)
	if err != nil {
		return nil
	}

	var match *qdrant.Match
	switch v := val.Kind.(type) {
	case *qdrant.Value_StringValue:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v.StringValue}}
	case *qdrant.Value_IntegerValue:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v.IntegerValue}}
	case *qdrant.Value_BoolValue:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v.BoolValue}}
	default:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", value)}}
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}
}

func operatorConditions(key string, ops map[string]interface{}) []*qdrant.Condition {
	var conditions []*qdrant.Condition
	rng := &qdrant.Range{}
	hasRange := false

	for op, operand := range ops {
		switch op {
		case "$in":
			if cond := inCondition(key, operand); cond != nil {
				conditions = append(conditions, cond)
			}
		case "$gt":
			if f, ok := toFloat(operand); ok {
				rng.Gt = &f
				hasRange = true
			}
		case "$gte":
			if f, ok := toFloat(operand); ok {
				rng.Gte = &f
				hasRange = true
			}
		case "$lt":
			if f, ok := toFloat(operand); ok {
				rng.Lt = &f
				hasRange = true
			}
		case "$lte":
			if f, ok := toFloat(operand); ok {
				rng.Lte = &f
				hasRange = true
			}
		}
	}

	if hasRange {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Range: rng,
				},
			},
		})
	}
	return conditions
}

func inCondition(key string, operand interface{}) *qdrant.Condition {
	var keywords []string
	switch vals := operand.(type) {
	case []string:
		keywords = vals
	case []interface{}:
		for _, v := range vals {
			keywords = append(keywords, fmt.Sprintf("%v", v))
		}
	default:
		return nil
	}
	if len(keywords) == 0 {
		return nil
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keywords{
						Keywords: &qdrant.RepeatedStrings{Strings: keywords},
					},
				},
			},
		},
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
