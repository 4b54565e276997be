package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFile 按天切分的日志文件 dir/2006-01-02.log
type DailyFile struct {
	dir   string
	clock func() time.Time

	mu   sync.Mutex
	file *os.File
	day  string
}

func NewDailyFile(dir string) *DailyFile {
	return &DailyFile{dir: dir, clock: time.Now}
}

// 日志文件不存在或者日期更新时打开新文件
func (d *DailyFile) rotate(now time.Time) error {
	day := now.Format("2006-01-02")
	if d.file != nil && d.day == day {
		return nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(d.dir, day+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file, d.day = f, day
	return nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotate(d.clock()); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file, d.day = nil, ""
	return err
}
