package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

type authenticator struct {
	conf  *core.Config
	users *user.Service
	jwt   middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, users *user.Service) *authenticator {
	return &authenticator{
		conf:  conf,
		users: users,
		jwt: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

// required rejects requests without a valid token, then loads the acting user.
func (au *authenticator) required() echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(au.jwt)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(au.loadUser(next))
	}
}

// optional authenticates requests carrying an Authorization header and lets the others through
// as anonymous.
func (au *authenticator) optional() echo.MiddlewareFunc {
	conf := au.jwt
	conf.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	jwtMw := middleware.JWTWithConfig(conf)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(au.loadUser(next))
	}
}

func (au *authenticator) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil { // anonymous
			return next(ctx)
		}
		usr, err := au.users.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return errUnauthorized
			}
			return errors.Wrap(err, "getting context user")
		}
		if !usr.IsActive {
			return errAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func (au *authenticator) claims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    au.conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(au.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// token generates a signed JWT token string representing the user Claims.
func (au *authenticator) token(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(au.jwt.SigningMethod)
	ss, err := jwt.NewWithClaims(method, claims).SignedString(au.jwt.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (au *authenticator) authenticate(ctx context.Context, uname, pwd string) (string, error) {
	usr, err := au.users.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errAuthenticationFailed
		}
		return "", errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return "", errAuthenticationFailed
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}
	if usr, err = au.users.SetLastLogin(ctx, usr); err != nil {
		return "", errors.Wrap(err, "setting last login")
	}
	return au.token(au.claims(usr))
}

// refresh issues a new token if the refresh window opened by the original login is still open.
func (au *authenticator) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := contextUser(ctx)
	if err != nil {
		return "", err
	}
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(au.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return au.token(au.claims(usr, claims.OrigIssuedAt))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// actor returns the acting identity; the zero Actor for anonymous requests.
func actor(ctx echo.Context) access.Actor {
	if usr, err := contextUser(ctx); err == nil {
		return access.NewActor(usr)
	}
	return access.Actor{}
}

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)
