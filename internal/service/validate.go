package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldSpec 表单字段约束表，页面渲染与校验共用
type FieldSpec struct {
	Name      string
	Label     string
	Kind      string // textarea, choice, file, text, password
	Required  bool
	MaxLength int
	HelpText  string
}

var (
	PostFormFields = []FieldSpec{
		{Name: "text", Label: "Текст поста", Kind: "textarea", Required: true, MaxLength: 10000, HelpText: "Текст нового поста"},
		{Name: "group", Label: "Группа", Kind: "choice", HelpText: "Группа, к которой будет относиться пост"},
		{Name: "image", Label: "Картинка", Kind: "file", HelpText: "Загрузите картинку"},
	}
	CommentFormFields = []FieldSpec{
		{Name: "text", Label: "Текст комментария", Kind: "textarea", Required: true, MaxLength: 2000},
	}
	SignupFormFields = []FieldSpec{
		{Name: "username", Label: "Имя пользователя", Kind: "text", Required: true, MaxLength: 150},
		{Name: "password", Label: "Пароль", Kind: "password", Required: true, MaxLength: 128},
	}
)

// 与 FieldSpec 保持一致的结构体约束
type postFields struct {
	Text string `form:"text" validate:"required,max=10000"`
}

type commentFields struct {
	Text string `form:"text" validate:"required,max=2000"`
}

type signupFields struct {
	Username string `form:"username" validate:"required,max=150,username"`
	Password string `form:"password" validate:"required,min=8,max=128"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			for _, r := range fl.Field().String() {
				if !(r == '_' || r == '.' || r == '@' || r == '+' || r == '-' ||
					(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127) {
					return false
				}
			}
			return true
		})
	})
	return validate
}

// validateStruct 将 validator 错误转成 ValidationError
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Обязательное поле."
	case "max":
		return fmt.Sprintf("Не более %s символов.", fe.Param())
	case "min":
		return fmt.Sprintf("Не менее %s символов.", fe.Param())
	case "username":
		return "Допустимы только буквы, цифры и символы @/./+/-/_."
	default:
		return fe.Error()
	}
}
