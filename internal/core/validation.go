package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return strings.ToLower(f.Name)
	})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := ParseMoney(fl.Field().String())
		return err == nil
	})
	return v
}

// MonthParams carries submitted Month attributes. A nil field was not supplied.
type MonthParams struct {
	Start *string
	End   *string
	Money *string
}

// NoteParams carries submitted Note attributes. A nil field was not supplied.
type NoteParams struct {
	Title *string
	Money *string
}

// SignUpParams is the registration form.
type SignUpParams struct {
	Email                string `form:"email" validate:"required,email,max=254"`
	Password             string `form:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `form:"password_confirmation" validate:"required,eqfield=Password"`
}

type monthForm struct {
	Start string `form:"start" validate:"required,datetime=2006-01-02"`
	End   string `form:"end" validate:"required,datetime=2006-01-02"`
	Money string `form:"money" validate:"required,money"`
}

type noteForm struct {
	Title string `form:"title" validate:"required,max=200"`
	Money string `form:"money" validate:"required,money"`
}

// ApplyTo returns a copy of m with the supplied attributes applied. Fields that
// were not supplied keep the value of m; m itself is never modified.
func (p MonthParams) ApplyTo(m Month) (Month, error) {
	form := monthForm{
		Start: pick(p.Start, m.Start.String()),
		End:   pick(p.End, m.End.String()),
		Money: pick(p.Money, moneyOrEmpty(m)),
	}
	if err := check(form); err != nil {
		return m, err
	}

	out := m
	out.Start, _ = ParseDate(form.Start)
	out.End, _ = ParseDate(form.End)
	out.Money, _ = ParseMoney(form.Money)
	if out.End.Before(out.Start.Time) {
		return m, NewValidationError("end", "must not be before start")
	}
	return out, nil
}

// ApplyTo returns a copy of n with the supplied attributes applied.
func (p NoteParams) ApplyTo(n Note) (Note, error) {
	money := ""
	if n.ID != "" {
		money = FormatMoney(n.Money)
	}
	form := noteForm{
		Title: pick(p.Title, n.Title),
		Money: pick(p.Money, money),
	}
	if err := check(form); err != nil {
		return n, err
	}

	out := n
	out.Title = form.Title
	out.Money, _ = ParseMoney(form.Money)
	return out, nil
}

// Validate checks the registration form and normalizes the email address.
func (p *SignUpParams) Validate() error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	return check(*p)
}

func pick(supplied *string, current string) string {
	if supplied == nil {
		return current
	}
	return strings.TrimSpace(*supplied)
}

func moneyOrEmpty(m Month) string {
	if m.ID == "" {
		return ""
	}
	return FormatMoney(m.Money)
}

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), errorMessage(fe))
	}
	return ve
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "email":
		return "is not a valid email address"
	case "min":
		return "is too short (minimum is " + fe.Param() + " characters)"
	case "max":
		return "is too long (maximum is " + fe.Param() + " characters)"
	case "datetime":
		return "is not a valid date"
	case "money":
		return "is not a valid amount"
	case "eqfield":
		return "doesn't match password"
	default:
		return "is invalid"
	}
}
