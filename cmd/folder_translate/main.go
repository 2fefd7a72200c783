// Command folder_translate submits every CSV in a folder through the batch
// translation pipeline, a few files at a time, and prints one line per file
// when all of them finish.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orugallu/diagtranslate/internal/batchapi"
	"github.com/orugallu/diagtranslate/internal/pipeline"
	"github.com/orugallu/diagtranslate/internal/tracker"
)

type fileResult struct {
	input   string
	summary pipeline.Summary
	err     error
}

func main() {
	log.SetFlags(0)
	if err := run(); err != nil {
		log.Fatalf("folder_translate: %v", err)
	}
}

func run() error {
	folder := flag.String("folder", "", "Folder containing input CSV files")
	outDir := flag.String("out", "out", "Folder for translated CSV files")
	lang := flag.String("lang", "", "Target language, e.g. Telugu")
	model := flag.String("model", pipeline.DefaultModel, "Chat model for batch requests")
	budget := flag.Int("token_budget", pipeline.DefaultTokenBudget, "Prompt token budget per batch")
	ratio := flag.Float64("output_ratio", pipeline.DefaultOutputRatio, "Estimated output tokens per prompt token")
	poll := flag.Duration("poll_interval", pipeline.DefaultPollInterval, "Batch job poll interval")
	tokenizerPath := flag.String("tokenizer", "", "Optional tokenizer.json for exact token counts")
	dbPath := flag.String("db", "out/batch_jobs.db", "Path to the job tracking SQLite DB")
	baseURL := flag.String("base_url", "", "Override the OpenAI API base URL")
	workers := flag.Int("workers", 3, "Number of files processed concurrently")
	flag.Parse()

	if *folder == "" || *lang == "" {
		flag.Usage()
		return errors.New("--folder and --lang are required")
	}
	if *workers < 1 {
		*workers = 1
	}

	inputs, err := listCSVFiles(*folder)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no CSV files in %s", *folder)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("set the OPENAI_API_KEY environment variable")
	}
	client, err := batchapi.NewClient(batchapi.Config{
		APIKey:  apiKey,
		BaseURL: *baseURL,
		Model:   *model,
	})
	if err != nil {
		return err
	}

	jobs, err := tracker.Open(*dbPath)
	if err != nil {
		return err
	}
	defer jobs.Close()

	log.Printf("submitting %d files from %s (%d workers)", len(inputs), *folder, *workers)
	started := time.Now()

	var mu sync.Mutex
	results := make([]fileResult, 0, len(inputs))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*workers)
	for _, input := range inputs {
		input := input
		g.Go(func() error {
			cfg := pipeline.Config{
				InputCSV:       input,
				OutputCSV:      outputPath(*outDir, input, *lang),
				TargetLanguage: *lang,
				Model:          *model,
				TokenBudget:    *budget,
				OutputRatio:    *ratio,
				PollInterval:   *poll,
				TokenizerPath:  *tokenizerPath,
			}
			summary, err := pipeline.Run(ctx, cfg, client, jobs)
			mu.Lock()
			results = append(results, fileResult{input: input, summary: summary, err: err})
			mu.Unlock()
			if err != nil {
				log.Printf("%s: %v", filepath.Base(input), err)
			}
			// One broken file must not cancel the rest of the folder.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].input < results[j].input })

	failed := 0
	for _, res := range results {
		name := filepath.Base(res.input)
		if res.err != nil {
			failed++
			log.Printf("FAIL %s: %v", name, res.err)
			continue
		}
		rep := res.summary.Report
		log.Printf("OK   %s: %d records, %d batches, %.1f%% translated -> %s",
			name, res.summary.Records, res.summary.Batches, rep.SuccessRate(), res.summary.OutputCSV)
		if !rep.Clean() {
			log.Printf("     %s: %d missing, %d extra, %d suspicious, %d shift warnings",
				name, rep.Missing, rep.Extra, rep.Suspicious, rep.Shifted)
		}
	}
	log.Printf("done: %d/%d files in %s", len(results)-failed, len(results), time.Since(started).Round(time.Second))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func listCSVFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folder, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, filepath.Join(folder, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func outputPath(outDir, input, lang string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name := fmt.Sprintf("%s_%s.csv", base, strings.ToLower(lang))
	return filepath.Join(outDir, name)
}
