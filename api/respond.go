package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/garnizeh/prep/internal/auth"
	"github.com/garnizeh/prep/pkg/models"
)

// Response messages clients recognise. PLAN_LIMIT and RATE_LIMIT are mapped
// to dedicated UI by the frontend; the other strings are shown as is.
const (
	msgPlanLimit    = "PLAN_LIMIT"
	msgRateLimit    = "RATE_LIMIT"
	msgNotLoggedIn  = "You are not logged in"
	msgNoPermission = "You do not have permission to do this"
	msgInternal     = "Internal Server Error"
)

const maxJSONBody = 1 << 20

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		return models.Difficulty(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("experience_level", func(fl validator.FieldLevel) bool {
		return models.ExperienceLevel(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		return validDuration(fl.Field().String())
	})
}

// validDuration accepts HH:MM:SS with minutes and seconds below 60.
func validDuration(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return false
	}
	for i, p := range parts {
		if len(p) < 2 {
			return false
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		if i > 0 && (len(p) != 2 || n > 59) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write json response", slog.Any("err", err))
	}
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error, fallback string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fallback
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return fallback + " (" + strings.Join(parts, ", ") + ")"
}

// principal returns the authenticated caller or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, msgNotLoggedIn, http.StatusUnauthorized)
	}
	return p, ok
}

func internalError(w http.ResponseWriter, what string, err error) {
	logger.Error(what, slog.Any("err", err))
	http.Error(w, msgInternal, http.StatusInternalServerError)
}
