//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return bcrypt.DefaultCost
}

func clampCost(cost int) int {
	if cost > bcrypt.DefaultCost {
		return bcrypt.DefaultCost
	}
	return cost
}
