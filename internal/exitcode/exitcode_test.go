package exitcode

import (
	"errors"
	"fmt"
	"testing"

	"cloudtodo/internal/service"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"validation", service.Errorf(service.KindValidation, "bad"), UserError},
		{"not found", service.Errorf(service.KindNotFound, "gone"), UserError},
		{"auth", service.ErrNotSignedIn, AuthError},
		{"permission", fmt.Errorf("load: %w", &service.Error{Kind: service.KindPermission}), PermissionError},
		{"plain", errors.New("boom"), BackendError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := For(tt.err); got != tt.want {
				t.Errorf("For(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
