package recipe

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	taskNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
	argTypes        = map[ArgType]struct{}{
		ArgTypeStr: {}, ArgTypeInt: {}, ArgTypeFloat: {}, ArgTypeBool: {}, ArgTypePath: {},
		ArgTypeDateTime: {}, ArgTypeIP: {}, ArgTypeIPv4: {}, ArgTypeIPv6: {}, ArgTypeEmail: {},
		ArgTypeHostname: {},
	}
)

// validatorInstance returns the shared validator, registering the
// recipe package's custom tags exactly once -- the same sync.Once
// singleton shape the teacher's config.validatorInstance uses, with
// step_id's '.'-forbidding pattern generalised into task_id and a new
// arg_type tag backing ArgSpec.Type.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("task_id", func(fl validator.FieldLevel) bool {
			return taskNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("arg_type", func(fl validator.FieldLevel) bool {
			_, ok := argTypes[ArgType(fl.Field().String())]
			return ok
		})

		validateInst = v
	})

	return validateInst
}
