package main

import (
	"context"
	"fmt"
	"os"

	"github.com/noah-isme/course-registration/internal/cli"
)

// @title Course Registration API
// @version 1.0.0
// @description Students, teachers and credit-capped course registrations
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
