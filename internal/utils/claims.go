package utils

// ClaimStrings reads a list-valued JWT claim. Decoded JSON arrays arrive as []any;
// non-string members are skipped and anything that is not a list yields nil.
func ClaimStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
