package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = New(context.Background(), Options{Addr: mr.Addr()})
	require.Error(t, err)
}

func TestAsynqOpt(t *testing.T) {
	opt := Options{Addr: "redis:6379", Password: "s3cret", DB: 2}.AsynqOpt()
	require.Equal(t, "redis:6379", opt.Addr)
	require.Equal(t, 2, opt.DB)
}
