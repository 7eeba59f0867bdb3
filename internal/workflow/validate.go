package workflow

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误中使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct 执行 struct tag 校验并转换为 ValidationError
func validateStruct(s interface{}, prefix string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		if prefix != "" {
			field = prefix + "." + field
		}
		return NewValidationError(field, "%s failed on the %q rule", field, fe.Tag())
	}
	return NewValidationError(prefix, "%v", err)
}
