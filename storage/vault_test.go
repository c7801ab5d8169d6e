package storage

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/require"
)

func TestVaultCASConflictDetection(t *testing.T) {
	casErr := &api.ResponseError{
		StatusCode: http.StatusBadRequest,
		Errors:     []string{"check-and-set parameter did not match the current version"},
	}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "cas conflict",
			err:  casErr,
			want: true,
		},
		{
			name: "wrapped cas conflict",
			err:  fmt.Errorf("failed to write secret: %w", casErr),
			want: true,
		},
		{
			name: "unrelated bad request",
			err: &api.ResponseError{
				StatusCode: http.StatusBadRequest,
				Errors:     []string{"invalid secret data"},
			},
			want: false,
		},
		{
			name: "cas message on non-400 status",
			err: &api.ResponseError{
				StatusCode: http.StatusForbidden,
				Errors:     []string{"check-and-set parameter did not match the current version"},
			},
			want: false,
		},
		{
			name: "flattened client error",
			err:  errors.New("Error making API request.\n\n* check-and-set parameter did not match the current version"),
			want: true,
		},
		{
			name: "transport error",
			err:  errors.New("dial tcp 127.0.0.1:8200: connection refused"),
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isCASConflict(tc.err))
		})
	}
}
