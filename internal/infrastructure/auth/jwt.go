package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/uuid"
)

// ErrUnauthorized no valid session is present
var ErrUnauthorized = errors.New("Unauthorized")

// AppTokenClaims session payload, the subject is the user ID
type AppTokenClaims struct {
	UID  int64  `json:"uid"`
	Name string `json:"name"`

	jwt.RegisteredClaims
}

// TimeRemaining remaining time before the token get expired
func (tk *AppTokenClaims) TimeRemaining() time.Duration {
	if tk.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(tk.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// JWTUtil issues and verifies the signed session cookie
type JWTUtil struct {
	secret    []byte
	tokenName string
	timeout   time.Duration
	method    jwt.SigningMethod
	idGen     uuid.Generator
}

// NewJWTUtil create a JWTUtil instance
func NewJWTUtil(method, secret, tokenName string, timeout time.Duration, idGen uuid.Generator) *JWTUtil {
	var signMethod jwt.SigningMethod
	switch method {
	case "HS384":
		signMethod = jwt.SigningMethodHS384
	case "HS512":
		signMethod = jwt.SigningMethodHS512
	default:
		signMethod = jwt.SigningMethodHS256
	}
	return &JWTUtil{
		method:    signMethod,
		secret:    []byte(secret),
		tokenName: tokenName,
		timeout:   timeout,
		idGen:     idGen,
	}
}

// Sign sign token
func (ju *JWTUtil) Sign(claims *AppTokenClaims) (string, error) {
	token := jwt.NewWithClaims(ju.method, claims)
	return token.SignedString(ju.secret)
}

// Validate validate token string with secret and return AppTokenClaims
func (ju *JWTUtil) Validate(tokenStr string) (*AppTokenClaims, error) {
	claims := new(AppTokenClaims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return ju.secret, nil
	}, jwt.WithValidMethods([]string{ju.method.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateTokenStr generate a session token for the user
func (ju *JWTUtil) GenerateTokenStr(uid int64, name string) (string, error) {
	jti, err := ju.idGen.Generate()
	if err != nil {
		return "", err
	}
	now := time.Now()
	return ju.Sign(&AppTokenClaims{
		UID:  uid,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(uid, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ju.timeout)),
		},
	})
}

// RefreshToken push token expiration timeout away from now
func (ju *JWTUtil) RefreshToken(claims *AppTokenClaims) *AppTokenClaims {
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ju.timeout))
	return claims
}

// SetClientToken set token in client cookie
func (ju *JWTUtil) SetClientToken(c echo.Context, tokenStr string) {
	c.SetCookie(&http.Cookie{
		Name:     ju.tokenName,
		Value:    tokenStr,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ju.timeout),
	})
}

// ClearClientToken clear client cookie
func (ju *JWTUtil) ClearClientToken(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     ju.tokenName,
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// SetContextToken set token in App context
func (ju *JWTUtil) SetContextToken(c echo.Context, token *AppTokenClaims) {
	c.Set(ju.tokenName, token)
}

// GetContextToken get token from App context
func (ju *JWTUtil) GetContextToken(c echo.Context) *AppTokenClaims {
	v, ok := c.Get(ju.tokenName).(*AppTokenClaims)
	if ok {
		return v
	}
	return nil
}

// ExtractToken get token string from request
func (ju *JWTUtil) ExtractToken(c echo.Context) (string, error) {
	token, err := c.Cookie(ju.tokenName)
	if err != nil {
		return "", err
	}
	if token.Value == "" {
		return "", ErrUnauthorized
	}
	return token.Value, nil
}

// RevocationKey KV key marking a signed-out session
func RevocationKey(claims *AppTokenClaims) string {
	return "session:revoked:" + claims.ID
}
