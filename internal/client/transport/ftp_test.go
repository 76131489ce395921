package transport

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTPExchange_DialFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ex := NewFTPExchange(FTPConfig{Addr: addr, Timeout: 200 * time.Millisecond})
	_, err = ex.Get(context.Background(), "in/options.json")
	require.ErrorIs(t, err, common.ErrConnectivity)
	require.NoError(t, ex.Close())
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, isUnavailable(&textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "no such file"}))
	assert.False(t, isUnavailable(&textproto.Error{Code: ftp.StatusNotLoggedIn}))
	assert.False(t, isUnavailable(errors.New("eof")))
}
