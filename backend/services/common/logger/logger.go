package logger

import (
	"context"
	"io"
	"os"

	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestIDHeader carries the request id between gateway and services.
const RequestIDHeader = "X-Request-ID"

// New builds the service logger. Production uses JSON with ISO8601
// timestamps, anything else the colored development console. When sink is
// non-nil (a CloudWatch Logs writer) every entry is also written to it as
// JSON.
func New(env string, sink io.Writer) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if sink == nil {
		return config.Build()
	}

	level := zap.NewAtomicLevelAt(config.Level.Level())
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(config.EncoderConfig), zapcore.AddSync(os.Stdout), level)

	jsonConfig := config.EncoderConfig
	jsonConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	sinkCore := zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(sink), level)

	return zap.New(zapcore.NewTee(consoleCore, sinkCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// NewService builds a service's logger, shipping entries to CloudWatch Logs
// when CLOUDWATCH_ENABLED=true. A CloudWatch failure is logged, not fatal.
func NewService(ctx context.Context, env, service string) (*zap.Logger, error) {
	var sink io.Writer
	cw, cwErr := awspkg.NewCloudWatchLogsClient(ctx, service)
	if cwErr == nil && cw.IsEnabled() {
		sink = cw
	}

	l, err := New(env, sink)
	if err != nil {
		return nil, err
	}
	l = l.With(zap.String("service", service))
	if cwErr != nil {
		l.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(cwErr))
	}
	return l, nil
}

// RequestID reuses an inbound X-Request-ID or mints one, stores it on the
// gin context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, requestID)
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// For returns l annotated with the request id of c, if any.
func For(c *gin.Context, l *zap.Logger) *zap.Logger {
	if rid := c.GetString(RequestIDKey); rid != "" {
		return l.With(zap.String("request_id", rid))
	}
	return l
}
