package handlers

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
)

const (
	tagCalendarDate   = "calendar_date"
	tagMilkingSession = "milking_session"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the ledger tags to gin's validator and reports
// fields by their JSON names. It is safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		if err := v.RegisterValidation(tagCalendarDate, func(fl validator.FieldLevel) bool {
			return calendar.ValidDate(fl.Field().String())
		}); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation(tagMilkingSession, func(fl validator.FieldLevel) bool {
			return models.Session(fl.Field().String()).Valid()
		})
	})
	return registerErr
}
