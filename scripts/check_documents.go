package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"alfredoptarigan/policy-analyzer/internal/config"
	"alfredoptarigan/policy-analyzer/internal/services"
)

// check_documents runs the offline half of the pipeline (extraction and
// keyword prequalification) over sample PDFs. The oracle is never called.
//
//	go run ./scripts/check_documents.go [file.pdf|dir ...]
func main() {
	log.Println("🚀 Checking sample policies...")

	cfg := config.Load()

	lexicons, err := services.LoadLexicons(cfg.Pipeline.LexiconPath)
	if err != nil {
		log.Fatalf("❌ Failed to load lexicons: %v", err)
	}

	pdfParser := services.NewPDFParserService(cfg.Pipeline.ScannedTextThreshold)
	prequalifier := services.NewPrequalifier(lexicons, cfg.Pipeline.GeneralThreshold, cfg.Pipeline.LineOfBusinessThreshold)
	formatter := services.NewRequestFormatter(cfg.Pipeline.MinTextLength, cfg.Pipeline.MaxTextLength, cfg.Pipeline.MaxRequestBytes)

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"./sample_policies"}
	}
	paths, err := collectPDFs(args)
	if err != nil {
		log.Fatalf("❌ Failed to list documents: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("❌ No PDF files found in %s", strings.Join(args, ", "))
	}

	ctx := context.Background()
	successCount := 0
	failCount := 0

	for _, path := range paths {
		log.Printf("\n📄 Processing: %s", path)

		doc, err := pdfParser.ExtractFile(ctx, path)
		if err != nil {
			log.Printf("   ❌ Extraction failed (%s): %v", services.ErrorKind(err), err)
			failCount++
			continue
		}
		log.Printf("   ✅ Extracted %d pages, %d characters", doc.PageCount, doc.CharCount)

		verdict := prequalifier.Prequalify(doc.Text)
		for _, name := range scoreNames(verdict.Scores) {
			log.Printf("   🔎 %-10s %d", name, verdict.Scores[name])
		}
		if !verdict.Accepted {
			log.Printf("   ❌ Not an insurance policy: %s", strings.Join(verdict.Reasons, "; "))
			failCount++
			continue
		}

		req, err := formatter.Prepare(doc.Text)
		if err != nil {
			log.Printf("   ❌ Request rejected (%s): %v", services.ErrorKind(err), err)
			failCount++
			continue
		}

		log.Printf("   ✅ Ready for analysis as %s policy (%d characters)", verdict.LineOfBusiness, req.CharCount)
		successCount++
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Check Summary:")
	log.Printf("   ✅ Accepted: %d documents", successCount)
	log.Printf("   ❌ Rejected: %d documents", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		os.Exit(1)
	}
}

func collectPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.pdf"))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func scoreNames(scores map[string]int) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
