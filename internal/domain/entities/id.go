package entities

import "github.com/google/uuid"

// newID returns a prefixed, time-sortable identifier such as "outfit_0192...".
func newID(prefix string) string {
	return prefix + "_" + uuid.Must(uuid.NewV7()).String()
}
