package graph

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Match reports whether doc satisfies filter. It understands the subset of the
// MongoDB query language the traversal queries are built from, so in-memory
// stores evaluate exactly the predicates the aggregation pipelines carry.
func Match(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		if !matchClause(doc, key, cond) {
			return false
		}
	}
	return true
}

func matchClause(doc bson.M, key string, cond interface{}) bool {
	switch key {
	case "$and":
		for _, sub := range subFilters(cond) {
			if !Match(doc, sub) {
				return false
			}
		}
		return true
	case "$or":
		for _, sub := range subFilters(cond) {
			if Match(doc, sub) {
				return true
			}
		}
		return false
	case "$nor":
		for _, sub := range subFilters(cond) {
			if Match(doc, sub) {
				return false
			}
		}
		return true
	}

	values := lookup(doc, strings.Split(key, "."))
	return matchValues(values, len(values) > 0, cond)
}

func matchValues(values []interface{}, found bool, cond interface{}) bool {
	if ops, ok := operatorDoc(cond); ok {
		for op, arg := range ops {
			if op == "$options" {
				continue
			}
			if !evalOperator(values, found, op, arg, ops) {
				return false
			}
		}
		return true
	}
	if re, ok := cond.(primitive.Regex); ok {
		return matchRegex(values, re.Pattern, re.Options)
	}
	return equalAny(values, found, cond)
}

func evalOperator(values []interface{}, found bool, op string, arg interface{}, ops bson.M) bool {
	switch op {
	case "$eq":
		return equalAny(values, found, arg)
	case "$ne":
		return !equalAny(values, found, arg)
	case "$in":
		return inAny(values, found, arg)
	case "$nin":
		return !inAny(values, found, arg)
	case "$exists":
		want, _ := arg.(bool)
		return want == found
	case "$type":
		for _, v := range expand(values) {
			if typeName(v) == arg {
				return true
			}
		}
		return false
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(values) {
			c, ok := compare(v, arg)
			if !ok {
				continue
			}
			switch {
			case op == "$gt" && c > 0, op == "$gte" && c >= 0, op == "$lt" && c < 0, op == "$lte" && c <= 0:
				return true
			}
		}
		return false
	case "$regex":
		options, _ := ops["$options"].(string)
		switch p := arg.(type) {
		case string:
			return matchRegex(values, p, options)
		case primitive.Regex:
			return matchRegex(values, p.Pattern, p.Options+options)
		}
		return false
	case "$elemMatch":
		for _, v := range values {
			for _, elem := range arrayItems(v) {
				if _, isOps := operatorDoc(arg); isOps {
					if matchValues([]interface{}{elem}, true, arg) {
						return true
					}
					continue
				}
				sub, ok := toDoc(arg)
				elemDoc, isDoc := toDoc(elem)
				if ok && isDoc && Match(elemDoc, sub) {
					return true
				}
			}
		}
		return false
	case "$size":
		want, ok := toFloat(arg)
		if !ok {
			return false
		}
		for _, v := range values {
			if items := arrayItems(v); items != nil && float64(len(items)) == want {
				return true
			}
		}
		return false
	case "$not":
		return !matchValues(values, found, arg)
	}
	return false
}

func equalAny(values []interface{}, found bool, want interface{}) bool {
	want = normalize(want)
	if !found {
		return want == nil
	}
	for _, v := range values {
		if equal(v, want) {
			return true
		}
		for _, item := range arrayItems(v) {
			if equal(item, want) {
				return true
			}
		}
	}
	return false
}

func inAny(values []interface{}, found bool, arg interface{}) bool {
	for _, candidate := range arrayItems(arg) {
		if re, ok := candidate.(primitive.Regex); ok {
			if matchRegex(values, re.Pattern, re.Options) {
				return true
			}
			continue
		}
		if equalAny(values, found, candidate) {
			return true
		}
	}
	return false
}

func matchRegex(values []interface{}, pattern, options string) bool {
	if strings.Contains(options, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	for _, v := range expand(values) {
		if s, ok := v.(string); ok && re.MatchString(s) {
			return true
		}
	}
	return false
}

// lookup resolves a dotted path, fanning out over arrays along the way.
func lookup(v interface{}, parts []string) []interface{} {
	if len(parts) == 0 {
		return []interface{}{normalize(v)}
	}
	if doc, ok := toDoc(v); ok {
		child, exists := doc[parts[0]]
		if !exists {
			return nil
		}
		return lookup(child, parts[1:])
	}
	var out []interface{}
	for _, item := range arrayItems(v) {
		out = append(out, lookup(item, parts)...)
	}
	return out
}

// expand flattens array values one level, keeping the arrays themselves.
func expand(values []interface{}) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
		out = append(out, arrayItems(v)...)
	}
	return out
}

func subFilters(v interface{}) []bson.M {
	var out []bson.M
	for _, item := range arrayItems(v) {
		if doc, ok := toDoc(item); ok {
			out = append(out, doc)
		}
	}
	return out
}

func operatorDoc(v interface{}) (bson.M, bool) {
	doc, ok := toDoc(v)
	if !ok || len(doc) == 0 {
		return nil, false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return doc, true
}

func toDoc(v interface{}) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]interface{}:
		return bson.M(t), true
	case bson.D:
		out := make(bson.M, len(t))
		for _, e := range t {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func arrayItems(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil, string, []byte, primitive.ObjectID:
		return nil
	case primitive.A:
		return t
	case []interface{}:
		return t
	case bson.D:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC().Truncate(time.Millisecond)
	case primitive.A:
		return []interface{}(t)
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		f, _ := toFloat(t)
		return f
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

func equal(a, b interface{}) bool {
	a, b = normalize(a), normalize(b)
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	ia, aArr := a.([]interface{})
	if aArr {
		ib := arrayItems(b)
		if ib == nil || len(ia) != len(ib) {
			return false
		}
		for i := range ia {
			if !equal(ia[i], ib[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b interface{}) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Hex(), y.Hex()), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func typeName(v interface{}) string {
	switch normalize(v).(type) {
	case nil:
		return "null"
	case time.Time:
		return "date"
	case bool:
		return "bool"
	case string:
		return "string"
	case float64:
		return "number"
	case primitive.ObjectID:
		return "objectId"
	case []interface{}:
		return "array"
	case bson.M, map[string]interface{}, bson.D:
		return "object"
	}
	return ""
}
