package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// Generate Random String (session ids, salts)
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateShareToken returns a URL-safe token for public service links
func GenerateShareToken() (string, error) {
	bytes := make([]byte, 18)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func GenerateSessionID() (string, error) {
	return GenerateRandomToken(32)
}
