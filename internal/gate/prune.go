package gate

// PruneEmpty recursively removes valueless entries from a decoded
// document: nils, empty strings, and maps or slices that end up empty
// after their own pruning. Zero numbers and false booleans are real
// values and stay. The second return reports whether anything remains.
func PruneEmpty(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		return val, val != ""
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if pruned, keep := PruneEmpty(item); keep {
				out[k] = pruned
			}
		}
		return out, len(out) > 0
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if pruned, keep := PruneEmpty(item); keep {
				out = append(out, pruned)
			}
		}
		return out, len(out) > 0
	default:
		return val, true
	}
}
