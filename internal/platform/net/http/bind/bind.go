// Package bind provides form binding and validation helpers for handlers
package bind

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode"

	perr "landpulse/internal/platform/errors"
	"landpulse/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"golang.org/x/text/unicode/norm"
)

// ValidatorSvc holds a singleton validator and translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Init initializes the singleton validator with english translations and form/json tag names
func Init() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"form", "json"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerRequired(v, trans)
		registerLocalityName(v, trans)

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Get returns the validator singleton, initializing on first use
func Get() *ValidatorSvc { return Init() }

// FormOptions controls parsing behavior
type FormOptions struct {
	MaxBytes int64 // default 64KB
}

// ParseForm binds url-encoded or multipart form values into the string fields of T
// tagged with `form:"name"`, NFC-normalizes and trims them, then validates T
func ParseForm[T any](r *http.Request, opts ...FormOptions) (T, error) {
	var zero T
	o := FormOptions{MaxBytes: 64 << 10}
	if len(opts) > 0 && opts[0].MaxBytes > 0 {
		o = opts[0]
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, o.MaxBytes)
	}
	if err := r.ParseForm(); err != nil {
		return zero, perr.Wrap(err, perr.ErrorCodeValidation, "invalid form body")
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(o.MaxBytes); err != nil {
			return zero, perr.Wrap(err, perr.ErrorCodeValidation, "invalid multipart body")
		}
	}

	var dst T
	rv := reflect.ValueOf(&dst).Elem()
	if rv.Kind() != reflect.Struct {
		return zero, perr.Internalf("bind: %T is not a struct", dst)
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name := f.Tag.Get("form")
		if name == "" || name == "-" || !f.IsExported() || f.Type.Kind() != reflect.String {
			continue
		}
		rv.Field(i).SetString(Normalize(r.Form.Get(name)))
	}

	if err := Get().Validator.Struct(dst); err != nil {
		if inv, ok := err.(*validator.InvalidValidationError); ok {
			logger.Get().Error().Err(inv).Msg("validator internal error")
			return zero, perr.Internalf("validation error")
		}
		field, msg := ValidationFieldAndMessage(err)
		return zero, perr.WithField(perr.Validationf("%s", msg), field)
	}
	return dst, nil
}

// Normalize trims whitespace and applies Unicode NFC so composed and decomposed
// spellings of the same name compare equal
func Normalize(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }

// ValidationFieldAndMessage returns the first field and translated message
func ValidationFieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field(), fe.Translate(Get().Translator)
	}
	return "", err.Error()
}

// ValidLocalityName rejects names that cannot be used as an output directory segment
func ValidLocalityName(s string) bool {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func registerRequired(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterTranslation("required", trans,
		func(ut ut.Translator) error {
			return ut.Add("required", "missing {0} name", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("required", fe.Field())
			return msg
		},
	)
}

func registerLocalityName(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("locname", func(fl validator.FieldLevel) bool {
		return ValidLocalityName(fl.Field().String())
	})
	_ = v.RegisterTranslation("locname", trans,
		func(ut ut.Translator) error {
			return ut.Add("locname", "{0} contains characters that are not allowed", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("locname", fe.Field())
			return msg
		},
	)
}
