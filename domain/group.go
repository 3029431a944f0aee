// Package domain contains core concepts of the chat system.
// This file defines Group entities and membership roles.
package domain

type GroupID int64

// Role of a user inside a group.
type Role string

const (
	RoleCreator Role = "creator"
	RoleMember  Role = "member"
)

type Group struct {
	ID   GroupID
	Name string
	Desc string
}

type Membership struct {
	UserID  UserID
	GroupID GroupID
	Role    Role
}
