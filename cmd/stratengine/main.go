package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"stratengine/cmd"
	"stratengine/internal/logger"
	l3_service "stratengine/internal/service/l3"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "stratengine",
		Short: "Strategy evaluation engine",
	}
	root.AddCommand(apiCmd(), evaluateCmd())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func apiCmd() *cobra.Command {
	var port int
	c := &cobra.Command{
		Use:   "api",
		Short: "Start the evaluation HTTP API",
		RunE: func(c *cobra.Command, args []string) error {
			deps, err := cmd.InitializeDependencies()
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(deps)
			return deps.ApiHandler.StartApi(port)
		},
	}
	c.Flags().IntVar(&port, "port", 3009, "port to listen on")
	return c
}

func evaluateCmd() *cobra.Command {
	var file string
	var asOfStr string
	c := &cobra.Command{
		Use:   "evaluate [source]",
		Short: "Evaluate a strategy once and print the allocation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			source := ""
			if len(args) > 0 {
				source = args[0]
			}
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read strategy file: %w", err)
				}
				source = string(raw)
			}
			if source == "" {
				return fmt.Errorf("provide strategy source as an argument or via --file")
			}

			asOf := time.Now().UTC()
			if asOfStr != "" {
				parsed, err := time.Parse("2006-01-02", asOfStr)
				if err != nil {
					return fmt.Errorf("failed to parse --as-of: %w", err)
				}
				asOf = parsed
			}

			deps, err := cmd.InitializeDependencies()
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(deps)

			ctx := logger.AddToContext(context.Background(), logger.New())
			result, err := deps.Engine.Evaluate(ctx, l3_service.EvaluationRequest{
				CorrelationID: uuid.New(),
				Source:        source,
				AsOf:          asOf,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result.Allocation, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if result.FromFallback {
				fmt.Fprintln(os.Stderr, "evaluation failed, allocation is the cash fallback")
			}
			return nil
		},
	}
	c.Flags().StringVar(&file, "file", "", "path to a strategy source file")
	c.Flags().StringVar(&asOfStr, "as-of", "", "evaluation date (YYYY-MM-DD), defaults to today")
	return c
}
