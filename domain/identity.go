// Package domain contains core concepts of the messaging system.
// This file defines the authenticated identity attached to a connection.
// The identity is derived once from a verified credential and never
// re-derived mid-session.
package domain

type UserID string

type Role string

const (
	RoleMember Role = "Member"
	RoleLeader Role = "Leader"
	RoleBureau Role = "Bureau"
)

// Identity is the immutable identity record owned by one live connection.
type Identity struct {
	UserID      UserID
	DisplayName string
	Role        Role
}
