package runtime

import (
	"os"
	goruntime "runtime"
	"strings"
)

// Merges override env vars on top of a base env slice.
//
// Entries keep the order in which their key first appears. Entries without
// "=" are dropped. Keys compare case-insensitively on Windows.
func mergeEnv(base, overrides []string) []string {
	index := make(map[string]int, len(base)+len(overrides))
	result := make([]string, 0, len(base)+len(overrides))

	for _, entry := range append(base[:len(base):len(base)], overrides...) {
		k, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key := envKey(k)
		if i, seen := index[key]; seen {
			result[i] = entry
			continue
		}
		index[key] = len(result)
		result = append(result, entry)
	}

	return result
}

// Prepends dirs to the PATH entry of env, adding one if missing.
func prependPath(env, dirs []string) []string {
	if len(dirs) == 0 {
		return env
	}
	prefix := strings.Join(dirs, string(os.PathListSeparator))

	for i, entry := range env {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || envKey(k) != envKey("PATH") {
			continue
		}
		out := append([]string(nil), env...)
		if v == "" {
			out[i] = k + "=" + prefix
		} else {
			out[i] = k + "=" + prefix + string(os.PathListSeparator) + v
		}
		return out
	}

	return append(append([]string(nil), env...), "PATH="+prefix)
}

// Normalizes an environment key for comparison.
func envKey(k string) string {
	if goruntime.GOOS == "windows" {
		return strings.ToUpper(k)
	}
	return k
}
