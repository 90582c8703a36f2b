package vkframe

import "strings"

// checkExisting returns the wanted names that are present in actual, NUL
// terminated for the C API, and how many were missing.
func checkExisting(actual, wanted []string) (existing []string, missing []string) {
	have := make(map[string]struct{}, len(actual))
	for _, name := range actual {
		have[strings.TrimRight(name, "\x00")] = struct{}{}
	}
	for _, name := range wanted {
		name = strings.TrimRight(name, "\x00")
		if _, ok := have[name]; ok {
			existing = append(existing, safeString(name))
			continue
		}
		missing = append(missing, name)
	}
	return existing, missing
}

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if strings.TrimRight(s, "\x00") == name {
			return true
		}
	}
	return false
}
