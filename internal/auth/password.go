package auth

import "golang.org/x/crypto/bcrypt"

// HashToken produces the value for API_TOKEN_HASH.
func HashToken(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

// VerifyToken reports whether plain matches the bcrypt hash.
func VerifyToken(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
