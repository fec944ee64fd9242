//go:build !race

package cms

func passwordHashCost() int {
	return 12
}
