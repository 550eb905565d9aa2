package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// requestLogger はリクエストIDを付与し、1リクエスト1行でログを出す
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(requestIDHeader, reqID)

		reqLogger := logger.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		event := reqLogger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = reqLogger.Error()
		case status >= http.StatusBadRequest:
			event = reqLogger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// openAPIValidator はAPI定義に沿っているかリクエストを検証する
// 定義に無いパスは後段のルーティングに任せる
func openAPIValidator(doc *openapi3.T) (gin.HandlerFunc, error) {
	// ホスト名に依存しないようにサーバー定義を外す
	doc.Servers = nil
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("API定義からルーターを作成できません: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		MultiError:         false,
	}

	return func(c *gin.Context) {
		// WebSocketのハンドシェイクは検証しない
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			c.Next()
			return
		}

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			if err == routers.ErrPathNotFound || err == routers.ErrMethodNotAllowed {
				c.Next()
				return
			}
			badRequest(c, err)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			badRequest(c, validationMessage(err))
			return
		}

		c.Next()
	}, nil
}

// validationMessage はkin-openapiのエラーから利用者向けの部分を取り出す
func validationMessage(err error) error {
	if reqErr, ok := err.(*openapi3filter.RequestError); ok {
		if reqErr.Parameter != nil {
			return fmt.Errorf("パラメータ %s が不正です: %s", reqErr.Parameter.Name, reqErr.Reason)
		}
		if se, ok := reqErr.Err.(*openapi3.SchemaError); ok {
			return fmt.Errorf("リクエストボディが不正です: %s", se.Reason)
		}
		return fmt.Errorf("リクエストが不正です: %s", reqErr.Error())
	}
	return err
}
