package userctx

import (
	"context"

	"github.com/blogem/hard-delete-gate/models"
)

// Context key type
type contextKey string

const (
	userEmailKey  contextKey = "user_email"
	userIDKey     contextKey = "user_id"
	userRoleKey   contextKey = "user_role"
	clientInfoKey contextKey = "client_info"
)

// ClientInfo describes where a request came from
type ClientInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// SetIdentity adds the authenticated user to the context
func SetIdentity(ctx context.Context, identity models.Identity) context.Context {
	ctx = SetUserID(ctx, identity.ID)
	ctx = SetUserEmail(ctx, identity.Email)
	return context.WithValue(ctx, userRoleKey, identity.Role)
}

// GetIdentity returns the authenticated user, if any
func GetIdentity(ctx context.Context) (models.Identity, bool) {
	id := GetUserID(ctx)
	if id == "" {
		return models.Identity{}, false
	}
	role, _ := ctx.Value(userRoleKey).(string)
	return models.Identity{ID: id, Email: GetUserEmail(ctx), Role: role}, true
}

// SetUserEmail adds user email to request context
func SetUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

// GetUserEmail retrieves user email from request context
func GetUserEmail(ctx context.Context) string {
	email, ok := ctx.Value(userEmailKey).(string)
	if !ok {
		return "anonymous"
	}
	return email
}

// SetUserID adds user ID to request context
func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID retrieves user ID from request context
func GetUserID(ctx context.Context) string {
	if userID := ctx.Value(userIDKey); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// SetClientInfo adds request origin details to the context
func SetClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, info)
}

// GetClientInfo retrieves request origin details from the context
func GetClientInfo(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey).(ClientInfo)
	return info
}
