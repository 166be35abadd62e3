package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"unicode"
)

// generateOTP devuelve un código numérico de 6 dígitos con padding de ceros,
// muestreado uniforme con crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// matchOTP compara contra el valor almacenado; vacío nunca matchea.
func matchOTP(code, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(stored)) == 1
}
