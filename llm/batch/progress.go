package batch

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Progress 进度上报。Processor 串行调用这些方法，实现无需加锁。
type Progress interface {
	Start(desc string, total int)
	Advance(r Result)
	Finish()
}

// NopProgress 不输出任何进度
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Advance(Result)    {}
func (NopProgress) Finish()           {}

// progressCounter 各实现共享的计数
type progressCounter struct {
	desc   string
	total  int
	done   int
	cached int
	failed int
}

func (c *progressCounter) start(desc string, total int) {
	*c = progressCounter{desc: desc, total: total}
}

func (c *progressCounter) advance(r Result) {
	c.done++
	switch r.Status() {
	case StatusCached:
		c.cached++
	case StatusFailed:
		c.failed++
	}
}

// LogProgress 通过 zap 每完成 Every 个条目输出一次进度
type LogProgress struct {
	logger   *zap.Logger
	interval int
	every    int
	c        progressCounter
}

// NewLogProgress 创建日志进度；every <= 0 时按总数的 10% 输出
func NewLogProgress(logger *zap.Logger, every int) *LogProgress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProgress{logger: logger, interval: every}
}

func (p *LogProgress) Start(desc string, total int) {
	p.c.start(desc, total)
	p.every = p.interval
	if p.every <= 0 {
		p.every = max(1, total/10)
	}
	p.logger.Info("batch started", zap.String("desc", desc), zap.Int("total", total))
}

func (p *LogProgress) Advance(r Result) {
	p.c.advance(r)
	if p.c.done%p.every == 0 || p.c.done == p.c.total {
		p.logger.Info("batch progress",
			zap.String("desc", p.c.desc),
			zap.Int("done", p.c.done),
			zap.Int("total", p.c.total),
			zap.Int("cached", p.c.cached),
			zap.Int("failed", p.c.failed),
		)
	}
}

func (p *LogProgress) Finish() {
	p.logger.Info("batch finished",
		zap.String("desc", p.c.desc),
		zap.Int("total", p.c.total),
		zap.Int("cached", p.c.cached),
		zap.Int("failed", p.c.failed),
	)
}

// WriterProgress 在终端（通常是 stderr）原地刷新单行计数
type WriterProgress struct {
	w io.Writer
	c progressCounter
}

// NewWriterProgress 创建终端进度
func NewWriterProgress(w io.Writer) *WriterProgress {
	return &WriterProgress{w: w}
}

func (p *WriterProgress) Start(desc string, total int) {
	p.c.start(desc, total)
	p.render()
}

func (p *WriterProgress) Advance(r Result) {
	p.c.advance(r)
	p.render()
}

func (p *WriterProgress) Finish() {
	fmt.Fprintln(p.w)
}

func (p *WriterProgress) render() {
	desc := p.c.desc
	if desc == "" {
		desc = "Processing"
	}
	fmt.Fprintf(p.w, "\r%s: %d/%d (cached %d, failed %d)", desc, p.c.done, p.c.total, p.c.cached, p.c.failed)
}
