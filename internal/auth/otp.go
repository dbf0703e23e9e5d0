package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrOTPMismatch is returned when the submitted code does not match.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrOTPExpired is returned when no pending code exists for the phone.
	ErrOTPExpired = errors.New("otp expired or not requested")
)

// OTPStore issues and verifies one-time login codes. Codes are stored
// bcrypt-hashed in Redis under a per-phone key with a TTL; verification
// deletes the key so a code is single-use.
type OTPStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	digits int
}

// NewOTPStore creates an OTP store.
func NewOTPStore(rdb *redis.Client, ttl time.Duration, digits int) *OTPStore {
	if digits <= 0 {
		digits = 6
	}
	return &OTPStore{rdb: rdb, ttl: ttl, digits: digits}
}

func otpKey(phone string) string { return "otp:" + phone }

// Issue generates a fresh code for the phone, replacing any pending one.
func (s *OTPStore) Issue(ctx context.Context, phone string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	if err := s.rdb.Set(ctx, otpKey(phone), string(hash), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify checks a submitted code and consumes it on success.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) error {
	hash, err := s.rdb.Get(ctx, otpKey(phone)).Result()
	if err == redis.Nil {
		return ErrOTPExpired
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return ErrOTPMismatch
	}
	if err := s.rdb.Del(ctx, otpKey(phone)).Err(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

func (s *OTPStore) generate() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < s.digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.digits, n), nil
}
