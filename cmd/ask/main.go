// Command ask answers one question against the ingested collections and
// prints the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"call-insights-go/internal/app"
	"call-insights-go/internal/config"
	"call-insights-go/internal/evaluation"
	"call-insights-go/internal/logger"
)

func main() {
	_ = godotenv.Load()

	timeout := flag.Duration("timeout", 3*time.Minute, "overall deadline for the question")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	planOnly := flag.Bool("plan", false, "print the routing plan without running the pipeline")
	evaluate := flag.Bool("evaluate", false, "judge the report and include the verdict")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-timeout 3m] [-json] [-plan] [-evaluate] <question>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}
	log := logger.NewWith(cfg.Environment, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log.WithComponent("app"))
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer a.Close()

	if *planOnly {
		plan, err := a.Pipeline.Plan(ctx, question)
		if err != nil {
			log.WithError(err).Fatal("planning failed")
		}
		printJSON(plan)
		return
	}

	res, err := a.Pipeline.Answer(ctx, question)
	if err != nil {
		log.WithError(err).Fatal("pipeline failed")
	}
	if *evaluate {
		ev, err := a.Judge.Evaluate(ctx, res.Question, res.Report)
		if err != nil {
			log.WithError(err).Warn("evaluation failed")
			ev = evaluation.Failed(err)
		}
		res.Evaluation = &ev
	}
	if *asJSON {
		printJSON(res)
		return
	}
	fmt.Println(res.Report)
	if res.Evaluation != nil {
		fmt.Printf("\nEvaluation: %s (%s)\n", res.Evaluation.Color.Code, res.Evaluation.Color.Reason)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
