package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/username/soldrip/backend/src/processors"
)

const (
	loginMessagePrefix = "soldrip:login"
	// LoginMessageMaxAge bounds how old a signed login message may be.
	LoginMessageMaxAge = 5 * time.Minute
)

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrInvalidSignature = errors.New("invalid login signature")
)

// AuthService issues and checks signer tokens. A token proves that its subject account
// signed a login message with its key.
type AuthService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewAuthService(secret string, expiry time.Duration) *AuthService {
	return &AuthService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// LoginMessage is the text an account signs to obtain a token.
func LoginMessage(account solana.PublicKey, at time.Time) string {
	return fmt.Sprintf("%s:%s:%d", loginMessagePrefix, account, at.Unix())
}

// Login checks an ed25519 signature over a recent LoginMessage and returns a token for account.
func (s *AuthService) Login(account solana.PublicKey, message, signature string) (string, error) {
	parts := strings.Split(message, ":")
	if len(parts) != 4 || parts[0]+":"+parts[1] != loginMessagePrefix || parts[2] != account.String() {
		return "", fmt.Errorf("%w: malformed login message", ErrInvalidSignature)
	}
	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if age < -time.Minute || age > LoginMessageMaxAge {
		return "", fmt.Errorf("%w: login message expired", ErrInvalidSignature)
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !sig.Verify(account, []byte(message)) {
		return "", ErrInvalidSignature
	}
	return s.GenerateToken(account)
}

// GenerateToken signs an HS256 token whose subject is the account key.
func (s *AuthService) GenerateToken(account solana.PublicKey) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   account.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken returns the account a token was issued for.
func (s *AuthService) ValidateToken(tokenString string) (solana.PublicKey, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	account, err := solana.PublicKeyFromBase58(claims.Subject)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return account, nil
}

// Verify implements the signer check used by the protocol service.
func (s *AuthService) Verify(tokenString string, signer solana.PublicKey) error {
	if tokenString == "" {
		return fmt.Errorf("%w: no signer token", processors.ErrMissingRequiredSignature)
	}
	account, err := s.ValidateToken(tokenString)
	if err != nil {
		return fmt.Errorf("%w: %v", processors.ErrMissingRequiredSignature, err)
	}
	if !account.Equals(signer) {
		return fmt.Errorf("%w: token is for %s, not %s", processors.ErrMissingRequiredSignature, account, signer)
	}
	return nil
}
