package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/BaSui01/imagine3d/audit"
	"github.com/BaSui01/imagine3d/pipeline"
)

// =============================================================================
// 🎨 generate / history 命令
// =============================================================================

// runGenerate 执行一次流水线并以 JSON 输出响应。
// 流水线失败只体现在响应内容中，退出码始终为 0。
func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	prompt := fs.String("prompt", "", "Prompt to generate from")
	caller := fs.String("caller", "", "Caller identity")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	resp := a.pipeline.Execute(ctx, pipeline.GenerationRequest{Prompt: *prompt}, a.runConfig(*caller))
	if err := writeJSON(os.Stdout, resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write response: %v\n", err)
		os.Exit(1)
	}
}

// runHistory 列出最近的生成记录
func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", audit.DefaultListLimit, "Number of records")
	offset := fs.Int("offset", 0, "Records to skip")
	asJSON := fs.Bool("json", false, "Print records as JSON")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	l, o := audit.NormalizePage(*limit, *offset)
	records, err := a.store.List(ctx, l, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list records: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		err = writeJSON(os.Stdout, records)
	} else {
		err = printRecords(os.Stdout, records)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write records: %v\n", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecords 以表格输出记录，提示词过长时截断
func printRecords(w io.Writer, records []audit.GenerationRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tPROMPT\tIMAGE\tMODEL")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			truncate(rec.OriginalPrompt, 40),
			rec.ImagePath,
			rec.Model3DPath,
		)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
