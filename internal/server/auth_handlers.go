package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"spekulus/internal/audit"
	"spekulus/internal/cache"
	"spekulus/internal/middleware"
	"spekulus/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "spekulus-api"
	tokenAudience = "spekulus-admin"
	tokenTTL      = 12 * time.Hour
)

const (
	localUserID   = "userID"
	localUsername = "username"
	localTokenID  = "tokenID"
	localTokenExp = "tokenExp"
)

// Login handles POST /api/auth/login
// @Summary Operator login
// @Description Authenticate an operator and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Login credentials"
// @Success 200 {object} object{token=string,expires_at=string,user=models.AdminUser}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username and password are required"))
	}

	ctx := audit.WithActor(c.UserContext(), strings.ToLower(strings.TrimSpace(req.Username)))

	user, err := s.adminRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		s.audit.LogAction(ctx, audit.ActionLogin, models.AuditFailure, "unknown user")
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		s.audit.LogAction(ctx, audit.ActionLogin, models.AuditFailure, "bad password")
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	s.audit.LogAction(ctx, audit.ActionLogin, models.AuditSuccess, "")

	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
		"user":       user,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Operator logout
// @Description Revoke the current session token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals(localTokenID).(string)
	exp, _ := c.Locals(localTokenExp).(time.Time)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: "SERVICE_UNAVAILABLE", Message: "Session revocation is unavailable"})
	}
	if err := cache.RevokeToken(c.UserContext(), s.redis, jti, time.Until(exp)); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// generateToken creates a signed session token for the operator.
func (s *Server) generateToken(user *models.AdminUser) (string, time.Time, error) {
	if s.config.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	expiresAt := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	return signed, expiresAt, err
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		},
			jwt.WithIssuer(tokenIssuer),
			jwt.WithAudience(tokenAudience),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		sub, _ := claims["sub"].(string)
		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}
		username, _ := claims["username"].(string)
		jti, _ := claims["jti"].(string)
		if username == "" || jti == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		revoked, err := cache.IsTokenRevoked(c.UserContext(), s.redis, jti)
		if err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "token revocation check failed",
				slog.String("error", err.Error()))
		}
		if revoked {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		c.Locals(localUserID, uint(userID))
		c.Locals(localUsername, username)
		c.Locals(localTokenID, jti)
		c.Locals(localTokenExp, exp.Time)

		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(audit.WithActor(ctx, username))

		return c.Next()
	}
}

// AdminRequired rejects tokens whose operator no longer exists.
// Must be placed after AuthRequired so that username is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, _ := c.Locals(localUsername).(string)

		user, err := s.adminRepo.GetByUsername(c.UserContext(), username)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if user == nil {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// actor is the operator name recorded in the audit log for this request.
func actor(c *fiber.Ctx) string {
	if username, ok := c.Locals(localUsername).(string); ok && username != "" {
		return username
	}
	return audit.SystemActor
}
