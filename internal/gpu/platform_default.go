//go:build !yzma

package gpu

func platformBackend() Backend {
	return None()
}
