package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// CodeLength gives a verification code about 190 bits of entropy.
	CodeLength = 32
)

var ErrCodeLength = errors.New("code length must be positive")

// GenerateCode returns a random alphanumeric verification code of CodeLength characters.
func GenerateCode() (string, error) {
	return generateCode(CodeLength)
}

func generateCode(length int) (string, error) {
	if length <= 0 {
		return "", ErrCodeLength
	}

	result := make([]byte, length)
	for i := range result {
		ch, err := randChar(codeAlphabet)
		if err != nil {
			return "", err
		}
		result[i] = ch
	}

	return string(result), nil
}

// randChar picks a random character from charset using crypto/rand.
func randChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}
