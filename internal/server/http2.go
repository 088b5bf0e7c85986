package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

/*
HTTP2Server HTTP/1.1 + HTTP/2 服务器
功能：封装标准库 http.Server，TLS 启用时 Go 自动协商 HTTP/2，
明文模式退化为 HTTP/1.1（仅建议开发环境）
*/
type HTTP2Server struct {
	server *http.Server
}

/*
NewHTTP2Server 创建 HTTP/2 服务器
*/
func NewHTTP2Server(addr string, handler http.Handler, tlsConfig *tls.Config, readTimeout, writeTimeout time.Duration) *HTTP2Server {
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	return &HTTP2Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			TLSConfig:         tlsConfig,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

/* Start 以 TLS 模式启动（阻塞） */
func (s *HTTP2Server) Start(certFile, keyFile string) error {
	return s.server.ListenAndServeTLS(certFile, keyFile)
}

/* StartInsecure 以明文模式启动（阻塞，仅开发环境） */
func (s *HTTP2Server) StartInsecure() error {
	return s.server.ListenAndServe()
}

/* Shutdown 优雅关闭，等待在途请求完成 */
func (s *HTTP2Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
