package metrics

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/simcore/simcore/internal/application/common"
)

// PrometheusMiddleware records command execution duration and success/
// failure counts for every request dispatched through common.Mediator,
// adapted from the teacher's PrometheusMiddleware (same reflection-based
// command-name extraction) but targeting common.Middleware's function
// shape instead of a separate mediator package.
func PrometheusMiddleware(collector *CommandMetricsCollector) common.Middleware {
	return func(ctx context.Context, request common.Request, next common.HandlerFunc) (common.Response, error) {
		if collector == nil {
			return next(ctx, request)
		}

		commandName := extractCommandName(request)
		start := time.Now()

		response, err := next(ctx, request)

		collector.RecordCommandExecution(commandName, time.Since(start).Seconds(), err == nil)
		return response, err
	}
}

// extractCommandName strips package qualification and pointer indirection
// from a request's type name, e.g. "*commandlog.SpawnTrain" ->
// "SpawnTrain".
func extractCommandName(request common.Request) string {
	if request == nil {
		return "UnknownCommand"
	}
	fullName := strings.TrimPrefix(reflect.TypeOf(request).String(), "*")
	parts := strings.Split(fullName, ".")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return fullName
}
