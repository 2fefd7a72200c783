package main

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/orugallu/diagtranslate/internal/tracker"
)

func runJobsCmd(args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the job tracking SQLite DB")
	status := fs.String("status", "", "Filter records by status")
	jobID := fs.String("job_id", "", "Show details for one job")
	if err := fs.Parse(args); err != nil {
		return err
	}

	jobs, err := tracker.Open(*dbPath)
	if err != nil {
		return err
	}
	defer jobs.Close()

	if *jobID != "" {
		return printJobDetails(jobs, *jobID)
	}
	return printJobList(jobs, *status)
}

func printJobDetails(jobs *tracker.Store, jobID string) error {
	job, ok, err := jobs.Get(jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no batch job record for %s", jobID)
	}
	fmt.Printf("Run ID:          %s\n", job.RunID)
	fmt.Printf("Input File:      %s\n", job.InputFile)
	fmt.Printf("Job ID:          %s\n", job.JobID)
	fmt.Printf("Status:          %s\n", job.Status)
	fmt.Printf("Target Language: %s\n", job.TargetLanguage)
	fmt.Printf("Output File:     %s\n", job.OutputFile)
	fmt.Printf("Created:         %s\n", job.CreatedAtUTC)
	fmt.Printf("Updated:         %s\n", job.UpdatedAtUTC)
	return nil
}

func printJobList(jobs *tracker.Store, statusFilter string) error {
	records, err := jobs.List(statusFilter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	headers := []string{"job_id", "status", "input_file", "target_language", "created_at_utc"}
	values := func(job tracker.Job) []string {
		return []string{job.JobID, job.Status, job.InputFile, job.TargetLanguage, job.CreatedAtUTC}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, job := range records {
		for i, v := range values(job) {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], c)
		}
		fmt.Println(strings.Join(parts, " | "))
	}

	printRow(headers)
	total := 0
	for _, w := range widths {
		total += w + 3
	}
	fmt.Println(strings.Repeat("-", total-3))
	for _, job := range records {
		printRow(values(job))
	}

	counts, err := jobs.StatusCounts()
	if err != nil {
		return err
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	fmt.Printf("\nTotal records: %d", len(records))
	for _, s := range statuses {
		fmt.Printf("  %s=%d", s, counts[s])
	}
	fmt.Println()
	return nil
}
