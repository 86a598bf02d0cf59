package keyvalstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

func (sc *StoreConfig) check() error {
	if sc.Path == "" {
		return errors.New("no path provided in configuration")
	}

	info, err := os.Stat(sc.Path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(sc.Path, 0o755); err != nil {
			return fmt.Errorf("unable to create data directory %s: %w", sc.Path, err)
		}
	} else if err != nil {
		return err
	} else if !info.IsDir() {
		return errors.New("path is not a directory")
	}

	if sc.MinimumFreeGB > 0 {
		usage, err := disk.Usage(sc.Path)
		if err != nil {
			return fmt.Errorf("unable to read disk usage for %s: %w", sc.Path, err)
		}
		freeGB := usage.Free / (1024 * 1024 * 1024)
		if freeGB < uint64(sc.MinimumFreeGB) {
			return errors.New("not enough space available on disk")
		}
	}

	return nil
}

// logDiskUsage reports disk usage of the data path using structured logging.
func logDiskUsage(log *logrus.Logger, path string) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"path":       path,
		"total (GB)": fmt.Sprintf("%.2f", float64(usage.Total)/1e9),
		"used (GB)":  fmt.Sprintf("%.2f", float64(usage.Used)/1e9),
		"free (GB)":  fmt.Sprintf("%.2f", float64(usage.Free)/1e9),
	}).Info("Disk Usage")

	return nil
}
