// loanriskctl is a small client for exercising a running prediction server:
// health probe, model card lookup, and single or batch scoring from a JSON
// file or a built-in sample application.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultServerURL = "http://localhost:9000"

var sampleApplication = map[string]any{
	"age":               35,
	"annual_income":     80000,
	"employment_length": 8,
	"home_ownership":    "MORTGAGE",
	"purpose":           "debt_consolidation",
	"loan_amount":       20000,
	"term_months":       60,
	"interest_rate":     9.5,
	"dti":               18.0,
	"credit_score":      760,
	"delinquency_2yrs":  0,
	"num_open_acc":      6,
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	serverURL := defaultServerURL
	if url := os.Getenv("LOANRISK_URL"); url != "" {
		serverURL = url
	}

	client := resty.New().
		SetBaseURL(serverURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	var err error
	switch os.Args[1] {
	case "health":
		err = get(client, "/health")
	case "model-info":
		err = get(client, "/model-info")
	case "predict":
		err = predict(client, fileArg())
	case "batch":
		err = batch(client, fileArg())
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("request failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: loanriskctl <command> [file]

Commands:
  health              probe the running server
  model-info          print the loaded model card
  predict [file]      score one application (built-in sample when no file)
  batch <file>        score a batch file: {"applications": [...]}

Environment:
  LOANRISK_URL        server base URL (default %s)
`, defaultServerURL)
}

func fileArg() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	return ""
}

func get(client *resty.Client, path string) error {
	resp, err := client.R().Get(path)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func predict(client *resty.Client, file string) error {
	body, err := loadBody(file, sampleApplication)
	if err != nil {
		return err
	}

	resp, err := client.R().SetBody(body).Post("/predict")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func batch(client *resty.Client, file string) error {
	if file == "" {
		return fmt.Errorf("batch requires a JSON file with {\"applications\": [...]}")
	}
	body, err := loadBody(file, nil)
	if err != nil {
		return err
	}

	resp, err := client.R().SetBody(body).Post("/batch-predict")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

// loadBody reads a JSON document from file, or falls back to the sample.
func loadBody(file string, fallback any) (any, error) {
	if file == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return body, nil
}

func printResponse(resp *resty.Response) error {
	var pretty json.RawMessage = resp.Body()
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(resp.Body()))
	} else {
		fmt.Println(string(out))
	}

	if resp.IsError() {
		return fmt.Errorf("server returned %s", resp.Status())
	}
	return nil
}
