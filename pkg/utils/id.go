package utils

import "github.com/google/uuid"

// GenID returns a new random message id.
func GenID() string {
	return uuid.NewString()
}
