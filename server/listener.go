package server

import (
	"net"
	"time"
)

const keepAlivePeriod = 3 * time.Minute

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted connections so dead admin
// clients eventually go away.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(keepAlivePeriod)
	return tc, nil
}
