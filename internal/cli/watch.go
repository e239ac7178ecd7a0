package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/lucidpdf/textlayer/overlay"
)

var (
	watchOutDir string
	watchDebug  bool

	// settleDelay is how long a file must stay quiet before it is
	// processed; scanners write large documents in bursts.
	settleDelay = time.Second
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and embed new PDFs as they appear",
	Long: `Watches a directory for incoming PDFs, typically a scanner drop
folder, and writes a searchable copy of each one. Files already
carrying the searchable_ prefix are left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutDir, "output-dir", "o", "", "directory for searchable copies (default alongside the input)")
	watchCmd.Flags().BoolVar(&watchDebug, "debug", false, "render text layers visibly for inspection")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	provider, err := newProvider(nil)
	if err != nil {
		return err
	}
	cfg, err := engineConfig(watchDebug)
	if err != nil {
		return err
	}
	engine := overlay.NewEngine(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !flagQuiet {
		cmd.Printf("watching %s for new PDFs\n", dir)
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !wantsEmbedding(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmd.PrintErrf("watch error: %v\n", err)

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < settleDelay {
					continue
				}
				delete(pending, path)
				output := defaultOutputPath(path, watchOutDir)
				if _, _, err := embedFile(ctx, provider, engine, path, output); err != nil {
					cmd.PrintErrf("embed %s: %v\n", filepath.Base(path), err)
					continue
				}
				if !flagQuiet {
					cmd.Printf("wrote %s\n", output)
				}
			}
		}
	}
}

// wantsEmbedding filters watch events down to fresh PDF inputs.
func wantsEmbedding(path string) bool {
	name := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return false
	}
	return !strings.HasPrefix(name, "searchable_")
}
