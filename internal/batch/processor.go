// Package batch writes rendered results to disk with a worker pool.
package batch

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"asset-studio/internal/imaging"
	"asset-studio/internal/render"
)

// Snapshotter provides the current frame of a mounted viewer.
type Snapshotter interface {
	WaitForFrame(ctx context.Context, mountID string) bool
	Snapshot(mountID string) (*image.NRGBA, bool)
}

// Config holds all shared resources for an export run.
type Config struct {
	OutputDir     string
	Workers       int
	Viewers       Snapshotter // nil skips mesh snapshots
	ThumbnailSize int         // >0 also writes a framed square mesh thumbnail
	FrameTimeout  time.Duration
	ProgressEvery time.Duration
	Logger        *zap.Logger
}

// Item is one result to export under Name.
type Item struct {
	Name   string
	Result render.Result
}

// Result holds the outcome of exporting one item.
type Result struct {
	Name      string
	Technique string
	Modality  string
	Files     []string // relative to OutputDir
	Success   bool
	Error     string
}

// Run exports all items using a worker pool. Results are in item order.
func Run(cfg Config, items []Item) []Result {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 2 * time.Second
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "batch"))

	total := len(items)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.ProgressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					logger.Info("export progress",
						zap.Int64("done", p),
						zap.Int("total", total),
						zap.Float64("items_per_sec", float64(p)/time.Since(start).Seconds()))
				}
			}
		}
	}()

	// Worker pool
	itemChan := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range itemChan {
				results[idx] = exportItem(cfg, items[idx])
				processed.Add(1)
			}
		}()
	}

	for i := range items {
		itemChan <- i
	}
	close(itemChan)

	wg.Wait()
	close(done)

	logger.Debug("export finished", zap.Int("items", total), zap.Duration("elapsed", time.Since(start)))
	return results
}

func exportItem(cfg Config, item Item) Result {
	p := item.Result.Payload()
	res := Result{Name: item.Name, Technique: p.Technique, Modality: string(p.Modality)}

	write := func(name string, data []byte) error {
		if err := os.WriteFile(filepath.Join(cfg.OutputDir, name), data, 0644); err != nil {
			return err
		}
		res.Files = append(res.Files, name)
		return nil
	}
	saveWebP := func(name string, img image.Image) error {
		if err := imaging.SaveWebP(filepath.Join(cfg.OutputDir, name), img); err != nil {
			return err
		}
		res.Files = append(res.Files, name)
		return nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		res.Error = err.Error()
		return res
	}

	var err error
	switch v := item.Result.(type) {
	case *render.ImageView:
		err = saveWebP(item.Name+".webp", v.Image)
	case *render.TextView:
		err = write(item.Name+".txt", []byte(v.Text))
	case *render.AudioView:
		err = write(item.Name+audioExt(v.MIME), v.Data)
	case *render.MeshView:
		err = write(item.Name+".json", []byte(p.Data))
		if err == nil && v.Mounted && cfg.Viewers != nil {
			err = exportSnapshot(cfg, v.MountID, item.Name, saveWebP)
		}
	case *render.MeshSummaryView:
		err = write(item.Name+".txt", []byte(v.Summary.String()+"\n"))
	case *render.FallbackView:
		err = write(item.Name+".txt", []byte(v.Raw))
	default:
		err = fmt.Errorf("unsupported result %T", item.Result)
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

func exportSnapshot(cfg Config, mountID, name string, save func(string, image.Image) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.FrameTimeout)
	defer cancel()
	if !cfg.Viewers.WaitForFrame(ctx, mountID) {
		return fmt.Errorf("viewer %q produced no frame", mountID)
	}
	img, ok := cfg.Viewers.Snapshot(mountID)
	if !ok {
		return fmt.Errorf("viewer %q has no surface", mountID)
	}
	if err := save(name+".webp", img); err != nil {
		return err
	}
	if cfg.ThumbnailSize > 0 {
		return save(name+"-thumb.webp", imaging.FrameContent(img, cfg.ThumbnailSize, 0.9))
	}
	return nil
}

func audioExt(mime string) string {
	if mime == "" {
		return ".bin"
	}
	if m := mimetype.Lookup(strings.TrimSpace(strings.Split(mime, ";")[0])); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}
