//go:build !unix

package tunnel

func classifyErrno(error) (Reason, bool) {
	return "", false
}
