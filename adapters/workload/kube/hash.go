package kube

import (
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/canonical/grafana-k8s-operator/internal/naming"
)

// hashEnv returns a short content hash over a string map, independent of
// iteration order.
func hashEnv(kv map[string]string) string {
	if len(kv) == 0 {
		return naming.ShortHash(nil, 6)
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kv[k])
		b.WriteByte(0)
	}
	return naming.ShortHash([]byte(b.String()), 6)
}

// envVars converts a map into a sorted EnvVar slice so deployment diffs
// are stable.
func envVars(env map[string]string) []corev1.EnvVar {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return out
}
