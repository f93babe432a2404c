package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role claim carried by access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// ResultManagerRoles may compute, publish and configure grading.
var ResultManagerRoles = []UserRole{RoleAdmin, RoleSuperAdmin}

// ResultViewerRoles may read computed results and the grade scale.
var ResultViewerRoles = []UserRole{RoleAdmin, RoleSuperAdmin, RoleTeacher}

// JWTClaims is the access token payload issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
