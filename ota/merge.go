package ota

import "maps"

// deepMerge merges src into dst. Nested objects merge recursively and any
// other value from src replaces the one in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		srcChild, srcIsMap := value.(map[string]any)
		dstChild, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = deepMerge(dstChild, srcChild)
			continue
		}
		if srcIsMap {
			dst[key] = deepMerge(nil, srcChild)
			continue
		}
		dst[key] = value
	}
	return dst
}

// shallowMerge replaces top-level keys of dst with those of src.
func shallowMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, src)
	return dst
}

func lookupPath(tree map[string]any, path []string) (any, bool) {
	var node any = tree
	for _, part := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[part]; !ok {
			return nil, false
		}
	}
	return node, true
}
