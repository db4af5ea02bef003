//go:build !linux

package affinity

const maxCPU = 1024

func pinThread(int) error {
	return ErrUnsupported
}
