package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLoopbackAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8089", true},
		{"localhost:8089", true},
		{"[::1]:8089", true},
		{"127.0.0.2:80", true},
		{":8089", false},
		{"0.0.0.0:8089", false},
		{"192.168.1.10:8089", false},
		{"example.com:8089", false},
		{"127.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoopbackAddr(tt.addr))
		})
	}
}
