package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	issuer      = "crimewatch-service"
	identityKey = "identity"
	officerKey  = "X-Officer-Key"
)

// Identity is the caller decoded from a bearer token.
type Identity struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// Feed is the notification feed this caller reads.
func (i Identity) Feed() models.Feed {
	if i.Role == models.RoleOfficer {
		return models.Feed{Role: models.RoleOfficer}
	}
	return models.Feed{Role: models.RoleCitizen, UserID: i.UserID}
}

// GenerateToken signs an HS256 token for id.
func GenerateToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.UserID,
		"role": string(id.Role),
		"exp":  time.Now().Add(ttl).Unix(),
		"iss":  issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates a token issued by GenerateToken.
func ParseToken(secret []byte, raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return Identity{}, errors.Wrapf(errs.ErrUnauthorized, "%v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.Wrap(errs.ErrUnauthorized, "unexpected claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	id := Identity{UserID: sub, Role: models.Role(role)}
	if id.UserID == "" || (id.Role != models.RoleCitizen && id.Role != models.RoleOfficer) {
		return Identity{}, errors.Wrap(errs.ErrUnauthorized, "token has no subject or role")
	}
	return id, nil
}

// GetCitizenToken issues a token for a new anonymous citizen id.
func (h *Handler) GetCitizenToken(c *gin.Context) {
	id := Identity{UserID: uuid.New().String(), Role: models.RoleCitizen}
	h.issue(c, id)
}

// GetOfficerToken issues an officer token when X-Officer-Key matches the configured key.
func (h *Handler) GetOfficerToken(c *gin.Context) {
	key := c.GetHeader(officerKey)
	if h.Config.OfficerKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.Config.OfficerKey)) != 1 {
		abortError(c, http.StatusUnauthorized, errors.Wrap(errs.ErrUnauthorized, "invalid officer key"))
		return
	}
	officerID := strings.TrimSpace(c.Query("officer_id"))
	if officerID == "" {
		officerID = "officer-" + uuid.New().String()
	}
	h.issue(c, Identity{UserID: officerID, Role: models.RoleOfficer})
}

func (h *Handler) issue(c *gin.Context, id Identity) {
	token, err := GenerateToken([]byte(h.Config.JWTSecret), id, h.Config.JWTTTL)
	if err != nil {
		h.Log.WithError(err).Error("failed to sign token")
		abortError(c, http.StatusInternalServerError, errors.Wrap(err, "failed to create token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": id.UserID, "role": id.Role})
}

// bearerToken reads the Authorization header, or the token query parameter that browsers
// use for WebSocket upgrades.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}

func (h *Handler) authenticate(c *gin.Context) (Identity, bool) {
	raw := bearerToken(c)
	if raw == "" {
		abortError(c, http.StatusUnauthorized, errors.Wrap(errs.ErrUnauthorized, "authorization token missing"))
		return Identity{}, false
	}
	id, err := ParseToken([]byte(h.Config.JWTSecret), raw)
	if err != nil {
		abortError(c, http.StatusUnauthorized, errors.Wrap(err, "invalid token or expired"))
		return Identity{}, false
	}
	return id, true
}

// AuthRequired rejects requests without a valid token and stores the Identity.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.authenticate(c)
		if !ok {
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity(c).Role != role {
			abortError(c, http.StatusForbidden, errors.Wrapf(errs.ErrForbidden, "%s role required", role))
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(Identity)
	return id
}
