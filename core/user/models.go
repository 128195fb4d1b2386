package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/perception/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is the profile of an authenticated account, as served by the backend.
// It is replaced wholesale whenever it is fetched again.
type User struct {
	ID       core.ID `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }

func (u User) IsTeacher() bool { return u.Role == RoleTeacher }

func (u User) IsZero() bool { return u.ID.IsZero() && u.Username == "" }

// Credentials are used to obtain a token. Username may also be the account email.
type Credentials struct {
	Username string `form:"emailOrUsername" json:"username" validate:"required,notblank"`
	Password string `form:"password" json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate, translator ut.Translator) error {
	c.Username = core.CleanString(c.Username)
	return core.ValidateStruct(validate, translator, c)
}

// NewUser contains information needed to register a new account.
type NewUser struct {
	Username string `form:"username" json:"username" validate:"required,min=3,max=20,alphanum_"`
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
	Role     string `form:"role" json:"role" validate:"required,oneof=student teacher"`
}

func (nu *NewUser) Validate(validate *validator.Validate, translator ut.Translator) error {
	nu.Username = core.CleanString(nu.Username)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return core.ValidateStruct(validate, translator, nu)
}
