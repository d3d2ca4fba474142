package httpapi

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var jsonNamesOnce sync.Once

// useJSONNames makes binding errors report fields by their json name.
func useJSONNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func bindingFields(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = fe.Field() + " is required"
		case "min":
			out[fe.Field()] = fe.Field() + " must be at least " + fe.Param()
		case "oneof":
			out[fe.Field()] = fe.Field() + " must be one of " + fe.Param()
		default:
			out[fe.Field()] = fe.Field() + " is invalid"
		}
	}
	return out
}
