package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{1, 1},
		{42, 42},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPage(tt.in))
	}
}

func TestClampPageSize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-1, 1},
		{1, 1},
		{100, 100},
		{101, 100},
		{5000, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPageSize(tt.in))
	}
}
