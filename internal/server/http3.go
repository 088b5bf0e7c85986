package server

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

/*
HTTP3Server HTTP/3 (QUIC) 服务器
功能：与 HTTP/2 服务器共享同一 gin 路由，走 UDP，
必须配置 TLS（QUIC 强制加密）
*/
type HTTP3Server struct {
	server *http3.Server
}

/*
NewHTTP3Server 创建 HTTP/3 服务器
*/
func NewHTTP3Server(addr string, handler http.Handler, tlsConfig *tls.Config) *HTTP3Server {
	return &HTTP3Server{
		server: &http3.Server{
			Addr:      addr,
			Handler:   handler,
			TLSConfig: http3.ConfigureTLSConfig(tlsConfig),
		},
	}
}

/* Start 启动服务器（阻塞） */
func (s *HTTP3Server) Start() error {
	return s.server.ListenAndServe()
}

/* Shutdown 优雅关闭 */
func (s *HTTP3Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
