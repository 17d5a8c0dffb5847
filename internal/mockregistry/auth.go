package mockregistry

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// Sentinel errors for token validation
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the payload of an issued token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for user that expires after the configured TTL.
func (s *Server) IssueToken(user User) (string, error) {
	now := s.opts.Clock()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.Server.GetTokenTTL())),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Server.JWTSecret))
}

// ParseToken verifies signature, issuer, audience and expiry.
func (s *Server) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.opts.Server.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.opts.Clock),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

func bearer(c *gin.Context) (string, error) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// authenticate rejects requests without a valid token or below the minimum role.
func (s *Server) authenticate(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearer(c)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := s.ParseToken(token)
		if err != nil {
			s.logger.Debug("token rejected", "request_id", c.GetString("request_id"), "error", err)
			fail(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if registry.RoleRank(claims.Role) < registry.RoleRank(minRole) {
			fail(c, http.StatusForbidden, "Requires role "+minRole)
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

func currentClaims(c *gin.Context) *Claims {
	v, _ := c.Get("claims")
	claims, _ := v.(*Claims)
	return claims
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "username and password are required")
		return
	}

	user, ok := s.store.user(req.Username)
	if !ok || subtle.ConstantTimeCompare([]byte(user.Password), []byte(req.Password)) != 1 {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.IssueToken(user)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		fail(c, http.StatusInternalServerError, "failed to sign token")
		return
	}
	s.logger.Info("user logged in", "username", user.Username, "role", user.Role)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) whoami(c *gin.Context) {
	claims := currentClaims(c)
	c.JSON(http.StatusOK, registry.User{Username: claims.Subject, Role: claims.Role})
}
