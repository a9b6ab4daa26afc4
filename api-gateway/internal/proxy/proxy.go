package proxy

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
)

// Identity headers are only ever set by the gateway.
const (
	HeaderUserID         = "X-User-ID"
	HeaderUserEmail      = "X-User-Email"
	HeaderOrganizationID = "X-Organization-ID"
	HeaderRole           = "X-User-Role"
	HeaderRequestID      = "X-Request-ID"
)

var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

type Proxy struct {
	table  *Table
	client *http.Client
	logger *zap.Logger
}

func New(table *Table, timeout time.Duration, logger *zap.Logger) *Proxy {
	return &Proxy{
		table:  table,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Authenticate runs AuthMiddleware on everything except the public routes.
func Authenticate(public []PublicRoute) gin.HandlerFunc {
	auth := middleware.AuthMiddleware()
	return func(c *gin.Context) {
		if isPublic(public, c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}
		auth(c)
	}
}

func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, ok := p.table.Match(c.Request.URL.Path)
		if !ok {
			middleware.RespondWithError(c, http.StatusNotFound, "Route not found")
			return
		}

		target := *route.Target
		target.Path = strings.TrimSuffix(target.Path, "/") + c.Request.URL.Path
		target.RawQuery = c.Request.URL.RawQuery

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target.String(), c.Request.Body)
		if err != nil {
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create request")
			return
		}
		req.ContentLength = c.Request.ContentLength
		copyHeaders(req.Header, c.Request.Header)
		p.setForwardingHeaders(c, req)

		start := time.Now()
		resp, err := p.client.Do(req)
		if err != nil {
			metrics.RecordUpstream(route.Service, 0, time.Since(start))
			p.logger.Error("upstream request failed",
				zap.String("service", route.Service),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			status := http.StatusBadGateway
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				status = http.StatusGatewayTimeout
			}
			middleware.RespondWithError(c, status, "Service unavailable")
			return
		}
		defer resp.Body.Close()
		metrics.RecordUpstream(route.Service, resp.StatusCode, time.Since(start))

		copyHeaders(c.Writer.Header(), resp.Header)
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			p.logger.Warn("failed to relay upstream response",
				zap.String("service", route.Service),
				zap.Error(err),
			)
		}
	}
}

func (p *Proxy) setForwardingHeaders(c *gin.Context, req *http.Request) {
	for _, h := range []string{HeaderUserID, HeaderUserEmail, HeaderOrganizationID, HeaderRole} {
		req.Header.Del(h)
	}
	id := middleware.CurrentIdentity(c)
	setIf(req.Header, HeaderUserID, id.UserID)
	setIf(req.Header, HeaderUserEmail, id.Email)
	setIf(req.Header, HeaderOrganizationID, id.OrganizationID)
	setIf(req.Header, HeaderRole, id.Role)

	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
		req.Header.Set("X-Forwarded-For", prior+", "+c.RemoteIP())
	} else {
		req.Header.Set("X-Forwarded-For", c.RemoteIP())
	}
	req.Header.Set("X-Forwarded-Host", c.Request.Host)
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHop[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
