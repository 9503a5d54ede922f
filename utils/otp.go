// utils/otp.go
package utils

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
)

// VerificationCodeGenerator produces 6-digit decimal codes from
// crypto/rand. It implements the identity service's CodeGenerator.
type VerificationCodeGenerator struct{}

func (VerificationCodeGenerator) Generate() (string, error) {
	return GenerateNumericCode(6)
}

// GenerateNumericCode generates a random numeric code of the specified length
func GenerateNumericCode(length int) (string, error) {
	const digits = "0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		result[i] = digits[num.Int64()]
	}
	return string(result), nil
}

// ValidateCodeAttempts rate-limits verification attempts per user via
// Redis. Limit is 5 attempts per hour.
func ValidateCodeAttempts(userID string, redis *redis.Client) error {
	key := "code_attempts:" + userID
	attempts, err := redis.Incr(context.Background(), key).Result()
	if err != nil {
		return err
	}

	// Set expiry if first attempt
	if attempts == 1 {
		redis.Expire(context.Background(), key, 1*time.Hour)
	}

	if attempts > 5 {
		return errors.New("too many verification attempts")
	}

	return nil
}
