package models

// Encryption parameters for contact identifiers at rest.
const (
	NonceSize  = 12
	KeySize    = 32
	Iterations = 100000
)
