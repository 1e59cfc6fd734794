package main

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/yatube/internal/media"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/render"
	"github.com/d60-Lab/yatube/pkg/logger"
)

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func summary(name string, vs []time.Duration) string {
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	avg := time.Duration(0)
	if len(vs) > 0 {
		avg = sum / time.Duration(len(vs))
	}
	return fmt.Sprintf("%s: samples=%d avg=%v p50=%v p95=%v p99=%v",
		name, len(vs), avg, pct(vs, 0.50), pct(vs, 0.95), pct(vs, 0.99))
}

// 对已有数据测量关注流查询和首页缓存命中/未命中的延迟
func newBenchCmd() *cobra.Command {
	var n, conc int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure feed query and index page cache latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			var users []model.User
			if err := a.db.WithContext(ctx).Order("id").Limit(n).Find(&users).Error; err != nil {
				return err
			}
			if len(users) == 0 {
				return fmt.Errorf("no users found, run `yatube seed` first")
			}

			feed := runConcurrent(n, conc, func(i int) error {
				_, err := a.feedSvc.Following(ctx, users[i%len(users)].ID, 1+i%3)
				return err
			})

			pc, closeCache, err := newPageCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeCache()
			store := media.NewStore(cfg.Media.Root, cfg.Media.URLPrefix, cfg.Media.MaxUploadBytes)
			renderer, err := render.New(store.URL)
			if err != nil {
				return err
			}

			// miss: 查询 + 渲染 + 写缓存；hit: 读缓存
			miss := runConcurrent(n, conc, func(i int) error {
				page, err := a.feedSvc.Index(ctx, 1+i%5)
				if err != nil {
					return err
				}
				body, err := renderer.Render("posts/index", map[string]any{"PageObj": page})
				if err != nil {
					return err
				}
				return pc.Set(ctx, fmt.Sprintf("bench:%d", i%5), body, cfg.Cache.IndexTTL)
			})
			hit := runConcurrent(n, conc, func(i int) error {
				_, _, err := pc.Get(ctx, fmt.Sprintf("bench:%d", i%5))
				return err
			})
			if err := pc.Clear(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "N=%d CONC=%d USERS=%d\n", n, conc, len(users))
			fmt.Fprintln(out, summary("Following feed", feed.durations))
			fmt.Fprintln(out, summary("Index page miss", miss.durations))
			fmt.Fprintln(out, summary("Index page hit", hit.durations))
			if errs := feed.errors + miss.errors + hit.errors; errs > 0 {
				fmt.Fprintf(out, "errors=%d (first: %v)\n", errs, firstErr(feed.first, miss.first, hit.first))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 1000, "operations per measurement")
	cmd.Flags().IntVar(&conc, "conc", 8, "concurrent workers")
	return cmd
}

type benchResult struct {
	durations []time.Duration
	errors    int
	first     error
}

// runConcurrent 用 conc 个 worker 执行 n 次 op
func runConcurrent(n, conc int, op func(i int) error) benchResult {
	if conc < 1 {
		conc = 1
	}
	if conc > n {
		conc = n
	}
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)

	var (
		mu  sync.Mutex
		res = benchResult{durations: make([]time.Duration, 0, n)}
		wg  sync.WaitGroup
	)
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				err := op(i)
				d := time.Since(st)
				mu.Lock()
				res.durations = append(res.durations, d)
				if err != nil {
					res.errors++
					if res.first == nil {
						res.first = err
					}
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return res
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

