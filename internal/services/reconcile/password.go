package reconcile

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+"
	allChars     = upperChars + lowerChars + digitChars + specialChars
)

// randomPassword returns a password with at least one character of each class
// followed by extra random characters. Store-auth users linked to a federated
// identity never log in with it.
func randomPassword(extra int) (string, error) {
	classes := []string{upperChars, lowerChars, digitChars, specialChars}
	out := make([]byte, 0, len(classes)+extra)
	for _, set := range classes {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for i := 0; i < extra; i++ {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	// Fisher-Yates so the class characters are not always first.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("failed to shuffle password: %w", err)
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("failed to generate password: %w", err)
	}
	return set[n.Int64()], nil
}
