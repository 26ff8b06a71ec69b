package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"required", Required("userId"), http.StatusBadRequest},
		{"validation", Validation("type", "bad type %q", "x"), http.StatusBadRequest},
		{"not found", NotFound("memory", "01J"), http.StatusNotFound},
		{"conflict", &Error{Kind: KindConflict, Message: "busy"}, http.StatusConflict},
		{"internal", Internal("save", errors.New("disk full")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("access: %w", NotFound("memory", "x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(Required("memoryId")); got != "memoryId is required" {
		t.Errorf("PublicMessage = %q", got)
	}
	if got := PublicMessage(Internal("save fact", errors.New("database is locked"))); got != "an unexpected error occurred" {
		t.Errorf("internal detail leaked: %q", got)
	}
	if got := PublicMessage(errors.New("sql: no rows")); got != "an unexpected error occurred" {
		t.Errorf("unclassified detail leaked: %q", got)
	}
}

func TestError_UnwrapAndFormat(t *testing.T) {
	cause := errors.New("database is locked")
	err := Internal("save relationship", cause)
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable with errors.Is")
	}
	if err.Error() != "save relationship: database is locked" {
		t.Errorf("Error() = %q", err.Error())
	}

	var e *Error
	if !errors.As(Required("characterId"), &e) || e.Field != "characterId" || e.Kind != KindValidation {
		t.Errorf("unexpected classified error: %+v", e)
	}
	if !Is(NotFound("fact", "1"), KindNotFound) || Is(nil, KindInternal) {
		t.Error("Is reported the wrong kind")
	}
}
