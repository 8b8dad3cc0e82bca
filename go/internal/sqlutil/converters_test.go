package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullRawMessage(t *testing.T) {
	tests := []struct {
		name      string
		in        []byte
		wantValid bool
	}{
		{name: "nil", in: nil, wantValid: false},
		{name: "empty", in: []byte{}, wantValid: false},
		{name: "object", in: []byte(`{"a":1}`), wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := ToNullRawMessage(tt.in)
			assert.Equal(t, tt.wantValid, n.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.in, FromNullRawMessage(n))
			} else {
				assert.Nil(t, FromNullRawMessage(n))
			}
		})
	}
}
