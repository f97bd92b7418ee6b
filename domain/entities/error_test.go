package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorDetail_Error(t *testing.T) {
	tests := []struct {
		name   string
		detail *ErrorDetail
		want   string
	}{
		{"nil", nil, ""},
		{"internal", &ErrorDetail{Message: "boom", Type: "internal"}, "boom"},
		{"typed", &ErrorDetail{Message: "boom", Type: "script"}, "script: boom"},
		{"coded", &ErrorDetail{Message: "boom", Type: "script", Code: "body"}, "script: boom [body]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.detail.Error())
		})
	}
}

func TestErrorDetail_Reason(t *testing.T) {
	assert.Equal(t, "", (*ErrorDetail)(nil).Reason())
	assert.Equal(t, "network", (&ErrorDetail{Type: "network"}).Reason())
	assert.Equal(t, "send", (&ErrorDetail{Type: "network", Code: "send"}).Reason())
	assert.Equal(t, "timeout", (&ErrorDetail{Type: "network", Code: "dial", IsTimeout: true}).Reason())
}
