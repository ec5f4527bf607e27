package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  error
		password string
	}{
		{name: "valid", body: `{"password":"hunter2"}`, password: "hunter2"},
		{name: "whitespace is kept", body: `{"password":" hunter2 "}`, password: " hunter2 "},
		{name: "empty", body: `{"password":""}`, wantErr: ErrPasswordRequired},
		{name: "missing", body: `{}`, wantErr: ErrPasswordRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req VerifyRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			err := req.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.password, req.Password)
		})
	}
}
