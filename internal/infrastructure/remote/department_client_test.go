package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"staffsync/internal/apperrors"
)

func TestDepartmentClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/departments/1":
			_, _ = w.Write([]byte(`{"id":1,"name":"Engineering","code":"ENG"}`))
		case "/api/v1/departments/2":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	client := NewDepartmentClient(srv.URL+"/", time.Second, BreakerConfig{}, zap.NewNop())

	d, err := client.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "ENG", d.Code)

	d, err = client.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = client.Get(context.Background(), 3)
	assert.ErrorIs(t, err, apperrors.ErrRemoteCheckUnavailable)
}
