package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"Lifelog/internal/config"
	"Lifelog/internal/database"
	"Lifelog/internal/utility"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	PatientTokenDuration   = 12 * time.Hour
	ClinicianTokenDuration = 8 * time.Hour
	MaxPatientCodeLength   = 20

	RolePatient   = "patient"
	RoleClinician = "clinician"

	PatientCookie   = "patient-token"
	ClinicianCookie = "clinician-token"

	PatientLoginPath   = "/patient/login"
	ClinicianLoginPath = "/clinician/login"
)

var (
	queries             database.Querier
	sessionSecret       []byte
	clinicianSecretHash []byte
	secureCookies       bool
)

type JwtCustomClaims struct {
	Role        string `json:"role"`
	PatientCode string `json:"patient_code,omitempty"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        string `json:"role"`
	PatientCode string `json:"patient_code,omitempty"`
}

type PatientSessionRequest struct {
	PatientCode string `json:"patient_code" form:"patient_code"`
}

type ClinicianLoginRequest struct {
	Secret string `json:"secret" form:"secret"`
}

// InitAuth wires the query layer and the secrets. A plain CLINICIAN_SECRET is
// hashed here so only the hash stays in memory.
func InitAuth(q database.Querier, cfg *config.Config) error {
	queries = q
	sessionSecret = []byte(cfg.SessionSecret)
	secureCookies = cfg.IsProduction()

	if cfg.ClinicianSecretHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.ClinicianSecretHash)); err != nil {
			return fmt.Errorf("CLINICIAN_SECRET_HASH is not a bcrypt hash: %w", err)
		}
		clinicianSecretHash = []byte(cfg.ClinicianSecretHash)
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.ClinicianSecret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash clinician secret: %w", err)
		}
		clinicianSecretHash = hash
	}

	log.Info().Str("env", cfg.AppEnv).Bool("secure_cookies", secureCookies).Msg("Auth initialized")
	return nil
}

// PatientSessionHandler handles POST /auth/patient
// A patient identifies with a clinician-issued code; no other identity is stored.
func PatientSessionHandler(c echo.Context) error {
	ctx := c.Request().Context()
	isForm := isFormPost(c)

	var req PatientSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	code := strings.TrimSpace(req.PatientCode)
	if code == "" || utf8.RuneCountInString(code) > MaxPatientCodeLength {
		return failLogin(c, isForm, http.StatusBadRequest, PatientLoginPath,
			fmt.Sprintf("Patient code is required (at most %d characters)", MaxPatientCodeLength))
	}

	if _, err := queries.GetPatientByCode(ctx, code); err != nil {
		if database.IsNotFound(err) {
			utility.AddRandomDelay()
			return failLogin(c, isForm, http.StatusNotFound, PatientLoginPath, "Unknown patient code")
		}
		utility.LoggerFrom(c).Error().Err(err).Msg("PatientSessionHandler: failed to look up patient code")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	token, err := GenerateToken(RolePatient, code, PatientTokenDuration)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("PatientSessionHandler: failed to sign token")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Error generating access token"})
	}

	if isForm {
		setAuthCookie(c, PatientCookie, token, PatientTokenDuration)
		return c.Redirect(http.StatusSeeOther, "/patient")
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(PatientTokenDuration.Seconds()),
		Role:        RolePatient,
		PatientCode: code,
	})
}

// ClinicianLoginHandler handles POST /auth/clinician
func ClinicianLoginHandler(c echo.Context) error {
	isForm := isFormPost(c)

	ip := c.RealIP()
	if err := utility.CheckIPRateLimit(ip); err != nil {
		utility.LoggerFrom(c).Warn().Str("ip", ip).Msg("Clinician login rate limited")
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	}

	var req ClinicianLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if err := bcrypt.CompareHashAndPassword(clinicianSecretHash, []byte(req.Secret)); err != nil {
		utility.AddRandomDelay()
		utility.LoggerFrom(c).Warn().Str("ip", ip).Msg("Failed clinician login attempt")
		return failLogin(c, isForm, http.StatusUnauthorized, ClinicianLoginPath, "Invalid secret")
	}

	token, err := GenerateToken(RoleClinician, "", ClinicianTokenDuration)
	if err != nil {
		utility.LoggerFrom(c).Error().Err(err).Msg("ClinicianLoginHandler: failed to sign token")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Error generating access token"})
	}

	if isForm {
		setAuthCookie(c, ClinicianCookie, token, ClinicianTokenDuration)
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ClinicianTokenDuration.Seconds()),
		Role:        RoleClinician,
	})
}

// PatientAuthMiddleware admits requests carrying a patient token whose code
// still exists, and sets "patient_code" in the context.
func PatientAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, wantsJSON, err := claimsFromRequest(c, PatientCookie, RolePatient)
		if err != nil {
			return reject(c, wantsJSON, PatientLoginPath, err)
		}

		if _, err := queries.GetPatientByCode(c.Request().Context(), claims.PatientCode); err != nil {
			if !database.IsNotFound(err) {
				utility.LoggerFrom(c).Error().Err(err).Msg("PatientAuthMiddleware: failed to look up patient code")
			}
			return reject(c, wantsJSON, PatientLoginPath, fmt.Errorf("patient code no longer valid"))
		}

		c.Set("role", claims.Role)
		c.Set("patient_code", claims.PatientCode)
		return next(c)
	}
}

// ClinicianAuthMiddleware admits requests carrying a clinician token.
func ClinicianAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, wantsJSON, err := claimsFromRequest(c, ClinicianCookie, RoleClinician)
		if err != nil {
			return reject(c, wantsJSON, ClinicianLoginPath, err)
		}

		c.Set("role", claims.Role)
		return next(c)
	}
}

// LogoutHandler clears both role cookies.
func LogoutHandler(c echo.Context) error {
	for _, name := range []string{PatientCookie, ClinicianCookie} {
		cookie := new(http.Cookie)
		cookie.Name = name
		cookie.Value = ""
		cookie.Expires = time.Unix(0, 0)
		cookie.MaxAge = -1
		cookie.Path = "/"
		cookie.HttpOnly = true
		cookie.Secure = secureCookies
		cookie.SameSite = http.SameSiteLaxMode
		c.SetCookie(cookie)
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ") {
		return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
	return c.Redirect(http.StatusSeeOther, PatientLoginPath)
}

// GenerateToken signs a role token with SESSION_SECRET.
func GenerateToken(role, patientCode string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JwtCustomClaims{
		Role:        role,
		PatientCode: patientCode,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "lifelog",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionSecret)
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(tokenString string) (*JwtCustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sessionSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func claimsFromRequest(c echo.Context, cookieName, role string) (*JwtCustomClaims, bool, error) {
	var tokenString string
	wantsJSON := strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)

	// Authorization header first (API clients), then cookie (browser).
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		wantsJSON = true
	} else if cookie, err := c.Cookie(cookieName); err == nil {
		tokenString = cookie.Value
	}

	if tokenString == "" {
		return nil, wantsJSON, fmt.Errorf("missing token")
	}

	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, wantsJSON, err
	}
	if claims.Role != role {
		return nil, wantsJSON, fmt.Errorf("token role %q not allowed", claims.Role)
	}
	if role == RolePatient && claims.PatientCode == "" {
		return nil, wantsJSON, fmt.Errorf("token has no patient code")
	}
	return claims, wantsJSON, nil
}

func reject(c echo.Context, wantsJSON bool, loginPath string, err error) error {
	utility.LoggerFrom(c).Debug().Err(err).Str("path", c.Path()).Msg("Token validation failed")
	if wantsJSON {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
	}
	return c.Redirect(http.StatusTemporaryRedirect, loginPath)
}

func failLogin(c echo.Context, isForm bool, status int, loginPath, msg string) error {
	if isForm {
		utility.SetFlash(c, msg)
		return c.Redirect(http.StatusSeeOther, loginPath)
	}
	return c.JSON(status, map[string]string{"error": msg})
}

func isFormPost(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}

func setAuthCookie(c echo.Context, name, token string, ttl time.Duration) {
	cookie := new(http.Cookie)
	cookie.Name = name
	cookie.Value = token
	cookie.Expires = time.Now().Add(ttl)
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.Secure = secureCookies
	cookie.SameSite = http.SameSiteLaxMode
	c.SetCookie(cookie)
}
