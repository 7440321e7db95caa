package app

import "github.com/google/uuid"

// generateID returns a random UUID for effects and app instances.
func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
