package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/orugallu/diagtranslate/internal/batchapi"
	"github.com/orugallu/diagtranslate/internal/pipeline"
	"github.com/orugallu/diagtranslate/internal/tracker"
)

const (
	defaultDBPath  = "out/batch_jobs.db"
	defaultBaseURL = ""
)

func main() {
	log.SetFlags(0)
	if err := runCLI(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func runCLI() error {
	if len(os.Args) < 2 {
		printUsage()
		return nil
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "translate":
		return runTranslateCmd(args)
	case "reprocess":
		return runReprocessCmd(args)
	case "jobs":
		return runJobsCmd(args)
	case "setup":
		return runSetupCmd(args)
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runTranslateCmd(args []string) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	input := fs.String("input", "", "Input CSV with description_id and english_sentence columns")
	lang := fs.String("lang", "", "Target language label, e.g. Telugu")
	output := fs.String("output", "", "Output CSV path")
	model := fs.String("model", pipeline.DefaultModel, "Model name for the batch requests")
	budget := fs.Int("token_budget", pipeline.DefaultTokenBudget, "Per-request token budget")
	ratio := fs.Float64("output_ratio", pipeline.DefaultOutputRatio, "Estimated output/input token ratio")
	poll := fs.Duration("poll_interval", pipeline.DefaultPollInterval, "Delay between job status checks")
	tokenizerPath := fs.String("tokenizer", "", "Optional tokenizer.json for exact token counting")
	dbPath := fs.String("db", defaultDBPath, "Path to the job tracking SQLite DB")
	baseURL := fs.String("base_url", defaultBaseURL, "Override the OpenAI API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newAPIClient(*baseURL, *model, *budget)
	if err != nil {
		return err
	}
	jobs, err := tracker.Open(*dbPath)
	if err != nil {
		return err
	}
	defer jobs.Close()

	summary, err := pipeline.Run(context.Background(), pipeline.Config{
		InputCSV:       *input,
		OutputCSV:      *output,
		TargetLanguage: *lang,
		Model:          *model,
		TokenBudget:    *budget,
		OutputRatio:    *ratio,
		PollInterval:   *poll,
		TokenizerPath:  *tokenizerPath,
	}, client, jobs)
	if err != nil {
		return err
	}

	fmt.Print(pipeline.FormatReport(summary))
	fmt.Printf("output written to %s (job %s)\n", summary.OutputCSV, summary.JobID)
	return nil
}

func runReprocessCmd(args []string) error {
	fs := flag.NewFlagSet("reprocess", flag.ContinueOnError)
	input := fs.String("input", "", "Input CSV used for the original submission")
	replies := fs.String("replies", "", "Previously downloaded batch output JSONL")
	output := fs.String("output", "", "Output CSV path")
	lang := fs.String("lang", "", "Target language label used at submission time")
	budget := fs.Int("token_budget", pipeline.DefaultTokenBudget, "Token budget used at submission time")
	ratio := fs.Float64("output_ratio", pipeline.DefaultOutputRatio, "Output ratio used at submission time")
	tokenizerPath := fs.String("tokenizer", "", "Tokenizer.json used at submission time, if any")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *replies == "" {
		return errors.New("--replies is required")
	}

	summary, err := pipeline.Reprocess(pipeline.Config{
		InputCSV:       *input,
		OutputCSV:      *output,
		TargetLanguage: *lang,
		TokenBudget:    *budget,
		OutputRatio:    *ratio,
		TokenizerPath:  *tokenizerPath,
	}, *replies)
	if err != nil {
		return err
	}

	fmt.Print(pipeline.FormatReport(summary))
	fmt.Printf("output written to %s\n", summary.OutputCSV)
	return nil
}

func runSetupCmd(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the job tracking SQLite DB")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := tracker.Setup(*dbPath); err != nil {
		return err
	}
	fmt.Printf("tracking schema ready at %s\n", *dbPath)
	return nil
}

func newAPIClient(baseURL, model string, maxTokens int) (*batchapi.Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("set the OPENAI_API_KEY environment variable")
	}
	return batchapi.NewClient(batchapi.Config{
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     model,
		MaxTokens: maxTokens,
	})
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  diagtranslate translate --input sentences.csv --lang Telugu --output translations.csv")
	fmt.Println("  diagtranslate reprocess --input sentences.csv --replies output.jsonl --output translations.csv")
	fmt.Println("  diagtranslate jobs [--db out/batch_jobs.db] [--status completed] [--job_id batch_...]")
	fmt.Println("  diagtranslate setup --db out/batch_jobs.db")
	fmt.Println()
	fmt.Printf("Default poll interval is %s; batch jobs typically take 30 minutes to several hours.\n", pipeline.DefaultPollInterval)
}
