package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskstream/backend/api/transport"
	"github.com/taskstream/backend/domain"
)

// ActorResolver turns a verified credential subject into an Actor; inactive
// or unknown users fail as unauthorized.
type ActorResolver interface {
	Resolve(ctx context.Context, userID string) (domain.Actor, error)
}

// JWTAuth verifies the bearer token, resolves the actor and places it on the
// request context for the handlers.
func JWTAuth(secret string, resolver ActorResolver, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				reject(ctx, "missing credentials")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				reject(ctx, "invalid credentials")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				reject(ctx, "invalid credentials")
				return
			}
			userID, _ := claims["user_id"].(string)
			if userID == "" {
				reject(ctx, "invalid credentials")
				return
			}

			resolveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			actor, err := resolver.Resolve(resolveCtx, userID)
			cancel()
			if err != nil {
				logger.Warn("credential resolution failed",
					zap.String("user_id", userID),
					zap.Error(err))
				reject(ctx, "unauthorized")
				return
			}

			ctx.SetUserValue("actor", actor)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

func reject(ctx *fasthttp.RequestCtx, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), message, nil))
	ctx.SetBody(body)
}
