package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucidpdf/textlayer/extractor"
	"github.com/lucidpdf/textlayer/ocr"
	"github.com/lucidpdf/textlayer/overlay"
)

var (
	embedOutput string
	embedText   bool
	embedVerify bool
	embedDebug  bool
)

var embedCmd = &cobra.Command{
	Use:   "embed [input.pdf]",
	Short: "Make a scanned PDF searchable",
	Long: `Runs OCR on the document and embeds the recognized words as an
invisible text layer, writing searchable_<input>.pdf next to the
original unless --output says otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "output path (default searchable_<input>.pdf)")
	embedCmd.Flags().BoolVar(&embedText, "text", false, "also write the OCR text as a .txt sidecar")
	embedCmd.Flags().BoolVar(&embedVerify, "verify", false, "re-extract the output and check every word is searchable")
	embedCmd.Flags().BoolVar(&embedDebug, "debug", false, "render the text layer visibly for inspection")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	input := args[0]

	provider, err := newProvider(nil)
	if err != nil {
		return err
	}
	cfg, err := engineConfig(embedDebug)
	if err != nil {
		return err
	}
	engine := overlay.NewEngine(cfg)

	output := embedOutput
	if output == "" {
		output = defaultOutputPath(input, "")
	}

	ctx := cmd.Context()
	if !flagQuiet {
		cmd.Printf("extracting text from %s\n", filepath.Base(input))
	}
	result, extracted, err := embedFile(ctx, provider, engine, input, output)
	if err != nil {
		return err
	}

	if embedText {
		textPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".txt"
		if err := os.WriteFile(textPath, []byte(ocr.SidecarText(extracted.Markdown)), 0o644); err != nil {
			return fmt.Errorf("write sidecar: %w", err)
		}
		if !flagQuiet {
			cmd.Printf("wrote %s\n", textPath)
		}
	}

	if !flagQuiet {
		cmd.Printf("embedded %d words across %d pages (%d skipped)\n",
			result.Report.EmbeddedWords, len(result.Report.Pages), result.Report.SkippedWords)
		cmd.Printf("wrote %s\n", output)
	}

	if embedVerify {
		return verifyOutput(ctx, cmd, result.Output, extracted.Pages)
	}
	return nil
}

// embedFile runs the full pipeline for one document and writes the result.
func embedFile(ctx context.Context, provider ocr.Provider, engine *overlay.Engine, input, output string) (*overlay.Result, *ocr.ExtractResult, error) {
	document, err := os.ReadFile(input)
	if err != nil {
		return nil, nil, err
	}
	extracted, err := provider.Extract(ctx, filepath.Base(input), document)
	if err != nil {
		return nil, nil, err
	}
	result, err := engine.Process(ctx, document, extracted.Pages)
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(output, result.Output, 0o644); err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", output, err)
	}
	return result, extracted, nil
}

func defaultOutputPath(input, dir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, "searchable_"+stem+".pdf")
}

// verifyOutput reparses the finished document and checks that every
// recognized word can be found in its extracted text.
func verifyOutput(ctx context.Context, cmd *cobra.Command, output []byte, pages map[int]ocr.PageWords) error {
	ext, err := extractor.FromBytes(ctx, output)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	texts, err := ext.ExtractText(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	want := make(map[int][]string, len(pages))
	for page, pw := range pages {
		for _, w := range pw.Words {
			want[page] = append(want[page], w.Text)
		}
	}

	missing := extractor.Missing(texts, want)
	if len(missing) == 0 {
		if !flagQuiet {
			cmd.Println("verification passed: every recognized word is searchable")
		}
		return nil
	}
	total := 0
	for _, words := range missing {
		total += len(words)
	}
	return fmt.Errorf("verification failed: %d words are not searchable in the output", total)
}
