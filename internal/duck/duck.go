// Package duck has the payload transform WebSocket sessions echo with.
package duck

const (
	prefix = "（ "
	suffix = " ）Oo｡. 🦆"
)

// Say wraps b in a speech bubble held by a duck. b is not modified.
func Say(b []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(b)+len(suffix))
	out = append(out, prefix...)
	out = append(out, b...)
	return append(out, suffix...)
}
