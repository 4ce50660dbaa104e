package routes

import (
	"github.com/cafe360/local-commerce/backend/api-gateway/utils"
	apperrors "github.com/cafe360/local-commerce/backend/services/common/errors"
	applogger "github.com/cafe360/local-commerce/backend/services/common/logger"
	"github.com/cafe360/local-commerce/backend/services/common/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterAllRoutes sends every request gin has no route for through the
// table. Upgrade requests on rules that allow them are tunnelled; everything
// else is forwarded as plain HTTP.
func RegisterAllRoutes(r *gin.Engine, table Table, fwd *utils.Forwarder, logger *zap.Logger) {
	r.NoRoute(func(c *gin.Context) {
		rule, ok := table.Match(c.Request.URL.Path)
		if !ok {
			applogger.For(c, logger).Debug("No route matched", zap.String("path", c.Request.URL.Path))
			apperrors.Abort(c, apperrors.ErrRouteNotFound)
			return
		}
		c.Set(metrics.RouteLabelKey, rule.Prefix)

		target, err := rule.TargetURL(rule.Apply(c.Request.URL.EscapedPath()), c.Request.URL.RawQuery)
		if err != nil {
			applogger.For(c, logger).Error("Failed to build upstream URL",
				zap.String("prefix", rule.Prefix),
				zap.Error(err),
			)
			apperrors.Abort(c, apperrors.ErrInternal)
			return
		}

		if rule.Upgrade && utils.IsUpgrade(c.Request) {
			fwd.Tunnel(c, target)
			return
		}
		fwd.Forward(c, target)
	})
}
