package core

import (
	"context"
	"fmt"

	"github.com/eskrenkovic/mediator-go"

	"go.uber.org/zap"
)

var _ mediator.PipelineBehavior = (*RequestLoggingBehavior)(nil)

type RequestLoggingBehavior struct {
	Logger *zap.Logger
}

func (b *RequestLoggingBehavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	logFields := []zap.Field{zap.String("request", requestName(request))}

	if correlationID := CorrelationID(ctx); correlationID != "" {
		logFields = append(logFields, zap.String("correlation_id", correlationID))
	}

	if caller := Caller(ctx); caller != "" {
		logFields = append(logFields, zap.String("caller", string(caller)))
	}

	if request != nil {
		logFields = append(logFields, zap.Any("request_body", request))
	}

	b.Logger.Info("processing request", logFields...)

	return next(ctx, request)
}

var _ mediator.PipelineBehavior = (*HandlerErrorLoggingBehavior)(nil)

type HandlerErrorLoggingBehavior struct {
	Logger *zap.Logger
}

func (b *HandlerErrorLoggingBehavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	response, err := next(ctx, request)
	if err != nil {
		fields := []zap.Field{
			zap.String("request", requestName(request)),
			zap.String("correlation_id", CorrelationID(ctx)),
			zap.Error(err),
		}
		if code, ok := CodeOf(err); ok {
			fields = append(fields, zap.String("code", string(code)))
		}
		b.Logger.Error("handler returned error", fields...)
	}

	return response, err
}

// LogError logs through the global zap logger, tagged with the request's
// correlation id.
func LogError(ctx context.Context, msg string, fields ...zap.Field) {
	fields = append(fields, zap.String("correlation_id", CorrelationID(ctx)))
	zap.L().Error(msg, fields...)
}

func requestName(request interface{}) string {
	return fmt.Sprintf("%T", request)
}
