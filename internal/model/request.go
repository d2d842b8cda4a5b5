package model

import (
	"net/mail"
	"strings"
	"time"

	"go-user-api/pkg/apierror"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	if r.Email == "" || r.Password == "" {
		return apierror.BadRequest("email and password are required", "")
	}
	return nil
}

// UserRequest is the body of registration, user creation and full user update.
type UserRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	BirthAt  *string `json:"birthAt"`
	Role     *Role   `json:"role"`

	birthAt *time.Time
}

func (r *UserRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)

	if r.Name == "" {
		return apierror.BadRequest("name is required", "name")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.Role != nil && !r.Role.Valid() {
		return apierror.BadRequest("invalid role", "role")
	}

	birthAt, err := parseBirthAt(r.BirthAt)
	if err != nil {
		return err
	}
	r.birthAt = birthAt

	return nil
}

// Input converts a validated request into a store record.
func (r UserRequest) Input(passwordHash string) UserInput {
	role := RoleUser
	if r.Role != nil {
		role = *r.Role
	}

	return UserInput{
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: passwordHash,
		BirthAt:      r.birthAt,
		Role:         role,
	}
}

type PatchUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	BirthAt  *string `json:"birthAt"`
	Role     *Role   `json:"role"`

	birthAt *time.Time
}

func (r *PatchUserRequest) Validate() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return apierror.BadRequest("name cannot be empty", "name")
		}
		r.Name = &name
	}
	if r.Email != nil {
		email := normalizeEmail(*r.Email)
		if err := validateEmail(email); err != nil {
			return err
		}
		r.Email = &email
	}
	if r.Password != nil {
		if err := ValidatePassword(*r.Password); err != nil {
			return err
		}
	}
	if r.Role != nil && !r.Role.Valid() {
		return apierror.BadRequest("invalid role", "role")
	}

	birthAt, err := parseBirthAt(r.BirthAt)
	if err != nil {
		return err
	}
	r.birthAt = birthAt

	return nil
}

// Patch converts a validated request into a partial update. passwordHash is
// nil when the request does not change the password.
func (r PatchUserRequest) Patch(passwordHash *string) UserPatch {
	return UserPatch{
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: passwordHash,
		BirthAt:      r.birthAt,
		Role:         r.Role,
	}
}

type ForgetRequest struct {
	Email string `json:"email"`
}

func (r *ForgetRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	return validateEmail(r.Email)
}

type ResetRequest struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (r *ResetRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	if r.Token == "" {
		return apierror.BadRequest("token is required", "token")
	}
	return ValidatePassword(r.Password)
}

type CheckTokenRequest struct {
	Token string `json:"token"`
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apierror.BadRequest("password must be at least 6 characters", "password")
	}
	if len(password) > MaxPasswordLength {
		return apierror.BadRequest("password must be at most 72 bytes", "password")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apierror.BadRequest("email is required", "email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apierror.BadRequest("invalid email", email)
	}
	return nil
}

func parseBirthAt(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}

	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}

	return nil, apierror.BadRequest("invalid birthAt date", value)
}
