package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"thumbexpert/internal/apperror"
)

const defaultCost = 12

var (
	ErrInvalidPassword = errors.New("auth: invalid password")

	hasDigit  = regexp.MustCompile(`\d`)
	hasSymbol = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

type PasswordService struct {
	cost int

	decoyOnce sync.Once
	decoy     []byte
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost lets tests trade hash strength for speed.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", apperror.ValidationFailed("password", "Password must be 72 bytes or fewer.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// VerifyDecoy spends one comparison against a fixed hash of the service's cost and
// always reports a mismatch. Logins for unknown accounts call it so they take as long
// as a wrong password on a real one.
func (p *PasswordService) VerifyDecoy(plaintext string) error {
	_ = bcrypt.CompareHashAndPassword(p.decoyHash(), []byte(plaintext))
	return ErrInvalidPassword
}

func (p *PasswordService) decoyHash() []byte {
	p.decoyOnce.Do(func() {
		hashed, err := bcrypt.GenerateFromPassword([]byte("decoy-password-never-issued"), p.cost)
		if err != nil {
			panic(fmt.Sprintf("auth: hashing decoy password: %v", err))
		}
		p.decoy = hashed
	})
	return p.decoy
}

// CheckPolicy enforces the signup rules and names every rule the password misses.
func CheckPolicy(password string) error {
	var missing []string
	if len(password) < 8 {
		missing = append(missing, "be at least 8 characters")
	}
	if !hasDigit.MatchString(password) {
		missing = append(missing, "contain a number")
	}
	if !hasSymbol.MatchString(password) {
		missing = append(missing, "contain a symbol")
	}
	if len(missing) == 0 {
		return nil
	}
	return apperror.ValidationFailed("password",
		"Password must meet all requirements: "+strings.Join(missing, ", ")+".")
}
