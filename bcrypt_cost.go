//go:build !race

package auth

func passwordHashCost() int {
	return 12
}

func clampCost(cost int) int {
	return cost
}
