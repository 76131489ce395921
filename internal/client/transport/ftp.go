package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/jlaffaye/ftp"
)

// FTPConfig holds the parameters of a legacy FTP exchange.
type FTPConfig struct {
	Addr     string
	Username string
	Password string
	Root     string
	Timeout  time.Duration
}

// FTPExchange is an Exchange on an FTP server. The control connection is
// opened on first use and kept until Close.
type FTPExchange struct {
	cfg FTPConfig

	mu   sync.Mutex
	conn *ftp.ServerConn
}

func NewFTPExchange(cfg FTPConfig) *FTPExchange {
	return &FTPExchange{cfg: cfg}
}

func (e *FTPExchange) connect(ctx context.Context) (*ftp.ServerConn, error) {
	if e.conn != nil {
		return e.conn, nil
	}
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if e.cfg.Timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(e.cfg.Timeout))
	}
	conn, err := ftp.Dial(e.cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: ftp dial %s: %w", common.ErrConnectivity, e.cfg.Addr, err)
	}
	if err := conn.Login(e.cfg.Username, e.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("%w: ftp login: %w", common.ErrUnauthorized, err)
	}
	e.conn = conn
	return conn, nil
}

func (e *FTPExchange) remote(name string) string {
	return path.Join(e.cfg.Root, name)
}

func (e *FTPExchange) Get(ctx context.Context, name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(e.remote(name))
	if err != nil {
		if isUnavailable(err) {
			return nil, fmt.Errorf("%s: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: ftp retr %s: %w", common.ErrConnectivity, name, err)
	}
	defer resp.Close()

	b, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: ftp retr %s: %w", common.ErrConnectivity, name, err)
	}
	return b, nil
}

func (e *FTPExchange) Put(ctx context.Context, name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := e.connect(ctx)
	if err != nil {
		return err
	}
	if err := conn.Stor(e.remote(name), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: ftp stor %s: %w", common.ErrConnectivity, name, err)
	}
	return nil
}

func (e *FTPExchange) Remove(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := e.connect(ctx)
	if err != nil {
		return err
	}
	if err := conn.Delete(e.remote(name)); err != nil && !isUnavailable(err) {
		return fmt.Errorf("%w: ftp delete %s: %w", common.ErrConnectivity, name, err)
	}
	return nil
}

func (e *FTPExchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	err := e.conn.Quit()
	e.conn = nil
	return err
}

// isUnavailable reports a 550 reply (no such file).
func isUnavailable(err error) bool {
	var te *textproto.Error
	return errors.As(err, &te) && te.Code == ftp.StatusFileUnavailable
}
