package models

import (
	"github.com/golang-jwt/jwt"
)

const (
	RoleMember = "member"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

// Claims is the access token payload issued by the managed auth backend.
type Claims struct {
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	jwt.StandardClaims
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
