// Command redraft runs the edit pipeline against a local file: parse, chunk,
// dispatch to the configured backends, and either print the edited text or
// the tracked changes against the original.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dgallion1/redraft/internal/chunker"
	"github.com/dgallion1/redraft/internal/config"
	"github.com/dgallion1/redraft/internal/editor"
	"github.com/dgallion1/redraft/internal/parser"
	"github.com/dgallion1/redraft/internal/track"
)

var (
	flagInstruction string
	flagOutput      string
	flagRefine      bool
	flagVariations  int
	flagTarget      int
	flagTolerance   int
	flagChanges     bool
)

var rootCmd = &cobra.Command{
	Use:          "redraft",
	Short:        "AI-assisted document editing with tracked changes",
	SilenceUsage: true,
}

var editCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Edit a document and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVarP(&flagInstruction, "instruction", "i", "", "editing instruction (required)")
	editCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write result to file instead of stdout")
	editCmd.Flags().BoolVar(&flagRefine, "refine", false, "use the three-step self-refinement chain")
	editCmd.Flags().IntVar(&flagVariations, "variations", 0, "generate N candidate edits instead of one")
	editCmd.Flags().IntVar(&flagTarget, "target-words", 0, "chunk target size in words")
	editCmd.Flags().IntVar(&flagTolerance, "tolerance-words", 0, "chunk size tolerance in words")
	editCmd.Flags().BoolVar(&flagChanges, "changes", false, "print tracked changes as JSON instead of edited text")
	editCmd.MarkFlagRequired("instruction")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	godotenv.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := config.Load()
	if flagTarget > 0 {
		cfg.TargetWords = flagTarget
	}
	if flagTolerance > 0 {
		cfg.Tolerance = flagTolerance
	}

	clients, err := editor.NewClients(cfg)
	if err != nil {
		return err
	}
	dispatcher := editor.NewDispatcher(clients, log)

	filename := filepath.Base(args[0])
	p, err := parser.ForFile(filename)
	if err != nil {
		return err
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = cfg.PDFFallbackPdftotext
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	text, err := p.Parse(f, filename)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	source := chunker.Normalize(text)
	if source == "" {
		return fmt.Errorf("%s contains no text", filename)
	}

	ctx := cmd.Context()

	if flagVariations > 1 {
		variations, err := dispatcher.EditVariations(ctx, source, flagInstruction, editor.Options{
			NumVariations: flagVariations,
		})
		if err != nil {
			return err
		}
		for i, v := range variations {
			fmt.Printf("--- variation %d ---\n%s\n\n", i+1, v)
		}
		return nil
	}

	edited, results, err := dispatcher.EditDocument(ctx, source, flagInstruction, editor.DocumentOptions{
		Options: editor.Options{Refine: flagRefine},
		Chunking: chunker.Config{
			TargetWords: cfg.TargetWords,
			Tolerance:   cfg.Tolerance,
		},
		LargeDocThreshold: cfg.LargeDocThresholdWords,
		MaxConcurrent:     cfg.MaxConcurrentChunks,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Failed {
			fmt.Fprintf(os.Stderr, "warning: chunk %d kept its original text (all backends failed)\n", r.Index)
		}
	}

	if flagChanges {
		changes := track.Build(source, edited)
		pending, accepted, rejected := changes.Counts()
		out, err := json.MarshalIndent(map[string]any{
			"groups":   changes.Groups(),
			"pending":  pending,
			"accepted": accepted,
			"rejected": rejected,
		}, "", "  ")
		if err != nil {
			return err
		}
		return writeResult(append(out, '\n'))
	}
	return writeResult([]byte(edited + "\n"))
}

func writeResult(data []byte) error {
	if flagOutput == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(flagOutput, data, 0o644)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
