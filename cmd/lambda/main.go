// lambda はAWS Lambda（API Gatewayプロキシ統合）向けのエントリーポイント。
package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hitoshi/grailtracker/internal/app"
)

func main() {
	b, err := app.Serverless()
	if err != nil {
		slog.Error("serverless initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	lambda.Start(b.HandleLambda)
}
