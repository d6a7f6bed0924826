//go:build !linux

package resource

func detectSystemMemoryMB() int {
	return 0
}
