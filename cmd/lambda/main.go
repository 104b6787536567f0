// Command lambda serves the same router behind an API Gateway HTTP API.
package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"neorest/infrastructure/config"
	"neorest/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	adapter   *chiadapter.ChiLambdaV2
	container *di.Container
	coldStart = true
)

// init builds everything once per execution environment. The container cleanup
// never runs: Lambda freezes the environment instead of stopping it.
func init() {
	began := time.Now()
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("container: %v", err)
	}

	if cfg.SchemaPath != "" {
		names, err := container.Loader.LoadPath(ctx, cfg.SchemaPath)
		if err != nil {
			log.Fatalf("schema %s: %v", cfg.SchemaPath, err)
		}
		container.Logger.Info("Schema loaded", zap.Strings("classes", names))
	}

	mux, ok := container.Router.Setup().(*chi.Mux)
	if !ok {
		log.Fatal("router is not a *chi.Mux")
	}
	adapter = chiadapter.NewV2(mux)

	container.Logger.Info("Cold start",
		zap.String("function", cfg.LambdaFunctionName),
		zap.Duration("duration", time.Since(began)),
	)
}

func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := adapter.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["X-Cold-Start"] = strconv.FormatBool(coldStart)
	coldStart = false
	if id := req.RequestContext.RequestID; id != "" {
		resp.Headers["X-Request-ID"] = id
	}

	// nothing runs between invocations, so journaled events go out now
	if container.Relay != nil {
		if n, err := container.Relay.Flush(ctx); err != nil {
			container.Logger.Warn("Relay flush failed", zap.Error(err))
		} else if n > 0 {
			container.Logger.Debug("Relay flushed", zap.Int("published", n))
		}
	}

	if resp.StatusCode >= 500 {
		container.Logger.Error("Invocation failed",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("requestID", req.RequestContext.RequestID),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp, err
}

func main() {
	lambda.Start(Handler)
}
