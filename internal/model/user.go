package model

import "time"

type Role int

const (
	RoleUser  Role = 1
	RoleAdmin Role = 2
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	BirthAt      *time.Time `json:"birthAt,omitempty"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserInput is a full user record as written by create and update.
// PasswordHash must already be hashed.
type UserInput struct {
	Name         string
	Email        string
	PasswordHash string
	BirthAt      *time.Time
	Role         Role
}

// UserPatch carries the fields of a partial update; nil means unchanged.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	BirthAt      *time.Time
	Role         *Role
}

func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.BirthAt != nil {
		birthAt := *p.BirthAt
		u.BirthAt = &birthAt
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}

type UserList struct {
	Users []User `json:"users"`
}

type AccessToken struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}
