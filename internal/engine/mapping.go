package engine

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"callbridge-backend/internal/metadata"
)

// Output buckets a target field may address.
const (
	bucketPerson   = "person"
	bucketDeal     = "deal"
	bucketActivity = "activity"
)

// Special-format target patterns. These encode a literal id in the target
// field itself instead of carrying a value from the source payload.
var (
	stageIDPattern      = regexp.MustCompile(`^deal\.stage_id\.(\d+)$`)
	activityTypePattern = regexp.MustCompile(`^activity\.type\.(\d+)$`)
	ownerIDPattern      = regexp.MustCompile(`^(person|deal|activity)\.owner_id\.(\d+)$`)
	customFieldPattern  = regexp.MustCompile(`^(person|deal)\.([A-Za-z0-9_]+)\.(\d+)$`)
)

// exprTransformPrefix marks a custom transform whose body is an expr-lang
// expression evaluated with `value` (and `source`) in scope.
const exprTransformPrefix = "expression:"

// Compiled custom transform programs, cached by expression string.
var (
	transformCacheMu sync.Mutex
	transformCache   = map[string]*vm.Program{}
)

// Transform converts a source event payload into a target-schema payload by
// applying the mapping rules in order. The result groups values into the
// person/deal/activity buckets and is validated against the CRM schema.
//
// A required mapping whose source path is absent aborts the whole transform
// with a MappingError; every other miss is skipped with a log line. Given
// identical inputs the output is identical (the engine holds no state beyond
// the schema it is handed).
func Transform(source map[string]any, mappings []metadata.FieldMapping, schema *metadata.CRMSchema) (map[string]any, error) {
	out := map[string]any{}

	for _, m := range mappings {
		val, present := ResolvePath(source, m.SourceField)
		if !present || val == nil {
			if m.Required {
				log.Printf("WARN: required source field %q is missing", m.SourceField)
				return nil, &MappingError{Field: m.SourceField, Message: "required source field is missing"}
			}
			continue
		}

		val = applyTransform(val, m.Transform, source)

		if !placeValue(out, m.TargetField, val, schema) {
			log.Printf("WARN: target field %q matches no known format, skipping", m.TargetField)
		}
	}

	validateAgainstSchema(out, schema)
	return out, nil
}

// placeValue routes a mapped value into the output. Returns false when the
// target field fits neither the plain bucket form nor any special pattern.
func placeValue(out map[string]any, targetField string, val any, schema *metadata.CRMSchema) bool {
	parts := strings.SplitN(targetField, ".", 2)
	isBucket := parts[0] == bucketPerson || parts[0] == bucketDeal || parts[0] == bucketActivity

	// Special formats first: they look like bucket paths but their last
	// segment is a literal id, not a field name.
	if m := stageIDPattern.FindStringSubmatch(targetField); m != nil {
		id, _ := strconv.Atoi(m[1])
		bucket(out, bucketDeal)["stage_id"] = id
		return true
	}
	if m := activityTypePattern.FindStringSubmatch(targetField); m != nil {
		id, _ := strconv.Atoi(m[1])
		bucket(out, bucketActivity)["type"] = id
		return true
	}
	if m := ownerIDPattern.FindStringSubmatch(targetField); m != nil {
		id, _ := strconv.Atoi(m[2])
		bucket(out, m[1])["owner_id"] = id
		return true
	}
	if m := customFieldPattern.FindStringSubmatch(targetField); m != nil {
		object, key := m[1], m[2]
		// Only fields the CRM schema actually knows get an option id set.
		if schema != nil && schema.KnowsFieldKey(object, key) {
			id, _ := strconv.Atoi(m[3])
			bucket(out, object)[key] = id
			return true
		}
		return false
	}

	if isBucket && len(parts) == 2 {
		placeNested(bucket(out, parts[0]), parts[1], val)
		return true
	}

	return false
}

func bucket(out map[string]any, name string) map[string]any {
	if b, ok := out[name].(map[string]any); ok {
		return b
	}
	b := map[string]any{}
	out[name] = b
	return b
}

func placeNested(target map[string]any, path string, val any) {
	parts := strings.Split(path, ".")
	for i := 0; i < len(parts)-1; i++ {
		next, ok := target[parts[i]].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[parts[i]] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = val
}

// validateAgainstSchema removes ids the CRM would reject and warns about
// person payloads with no name-ish field. Removal, never error: a dropped
// invalid id is recoverable downstream, a hard failure is not.
func validateAgainstSchema(out map[string]any, schema *metadata.CRMSchema) {
	if schema == nil {
		return
	}

	if deal, ok := out[bucketDeal].(map[string]any); ok {
		if id, isInt := intValue(deal["stage_id"]); isInt && !schema.HasStage(id) {
			log.Printf("WARN: dropping unknown deal stage_id %d", id)
			delete(deal, "stage_id")
		}
		if id, isInt := intValue(deal["pipeline_id"]); isInt && !schema.HasPipeline(id) {
			log.Printf("WARN: dropping unknown deal pipeline_id %d", id)
			delete(deal, "pipeline_id")
		}
	}

	if activity, ok := out[bucketActivity].(map[string]any); ok {
		if id, isInt := intValue(activity["type"]); isInt && !schema.HasActivityType(id) {
			log.Printf("WARN: dropping unknown activity type %d", id)
			delete(activity, "type")
		}
	}

	if person, ok := out[bucketPerson].(map[string]any); ok {
		if _, hasName := person["name"]; !hasName {
			if _, hasFirst := person["first_name"]; !hasFirst {
				if _, hasLast := person["last_name"]; !hasLast {
					log.Printf("WARN: mapped person payload has no name field")
				}
			}
		}
	}
}

// applyTransform applies the named transform. Unknown transform names leave
// the value untouched with a warning.
func applyTransform(val any, transform string, source map[string]any) any {
	if transform == "" {
		return val
	}

	if strings.HasPrefix(transform, exprTransformPrefix) {
		return applyExprTransform(val, strings.TrimPrefix(transform, exprTransformPrefix), source)
	}

	switch transform {
	case "uppercase":
		return strings.ToUpper(asString(val))
	case "lowercase":
		return strings.ToLower(asString(val))
	case "capitalize":
		return capitalizeWords(asString(val))
	case "truncate_100":
		s := asString(val)
		if len(s) > 100 {
			return s[:100]
		}
		return s
	case "phone_format":
		return formatPhone(asString(val))
	default:
		log.Printf("WARN: unknown transform %q, leaving value unchanged", transform)
		return val
	}
}

// applyExprTransform evaluates a custom transform expression with the raw
// value and the whole source payload in scope. Evaluation failures keep the
// original value: a bad expression must not lose data.
func applyExprTransform(val any, expression string, source map[string]any) any {
	transformCacheMu.Lock()
	prog, ok := transformCache[expression]
	transformCacheMu.Unlock()
	if !ok {
		var err error
		prog, err = expr.Compile(expression)
		if err != nil {
			log.Printf("WARN: compile transform expression %q: %v", expression, err)
			return val
		}
		transformCacheMu.Lock()
		transformCache[expression] = prog
		transformCacheMu.Unlock()
	}

	result, err := expr.Run(prog, map[string]any{"value": val, "source": source})
	if err != nil {
		log.Printf("WARN: evaluate transform expression %q: %v", expression, err)
		return val
	}
	return result
}

func capitalizeWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatPhone strips non-digits and applies the (XXX) XXX-XXXX pattern to
// exactly 10 digits; anything else comes back as bare digits.
func formatPhone(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 10 {
		return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
	}
	return d
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
