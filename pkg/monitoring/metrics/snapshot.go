// Package metrics 提供指标快照的可选持久化
package metrics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// SnapshotStore 指标快照存储接口。内存存储始终是权威数据源，
// 快照只在进程重启后提供诊断参考。
type SnapshotStore interface {
	// SaveSnapshot 保存一份快照
	SaveSnapshot(snapshot models.MetricSnapshot) error
	// LoadSnapshot 读取最近一份快照
	LoadSnapshot() (*models.MetricSnapshot, error)
	// Close 关闭存储
	Close() error
}

// 快照存储的键
const snapshotKey = "metrics:snapshot"

// BadgerSnapshotStore 基于BadgerDB的快照存储
type BadgerSnapshotStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerSnapshotStore 打开指定目录下的快照存储
func NewBadgerSnapshotStore(dataDir string, logger *zap.Logger) (*BadgerSnapshotStore, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开快照数据库失败: %w", err)
	}

	logger.Info("指标快照存储已打开", zap.String("dir", dataDir))
	return &BadgerSnapshotStore{db: db, logger: logger}, nil
}

// SaveSnapshot 保存一份快照，覆盖上一份
func (s *BadgerSnapshotStore) SaveSnapshot(snapshot models.MetricSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化指标快照失败: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), data)
	})
	if err != nil {
		return fmt.Errorf("写入指标快照失败: %w", err)
	}

	s.logger.Debug("指标快照已保存",
		zap.Int("series", len(snapshot.Series)),
		zap.Time("timestamp", snapshot.Timestamp))
	return nil
}

// LoadSnapshot 读取最近一份快照，不存在时返回nil
func (s *BadgerSnapshotStore) LoadSnapshot() (*models.MetricSnapshot, error) {
	var snapshot *models.MetricSnapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var snap models.MetricSnapshot
			if err := json.Unmarshal(val, &snap); err != nil {
				return err
			}
			snapshot = &snap
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("读取指标快照失败: %w", err)
	}

	return snapshot, nil
}

// Close 关闭存储
func (s *BadgerSnapshotStore) Close() error {
	return s.db.Close()
}

// AgeOf 返回快照的年龄，便于调用方判断快照是否还有参考价值
func AgeOf(snapshot *models.MetricSnapshot) time.Duration {
	if snapshot == nil {
		return 0
	}
	return time.Since(snapshot.Timestamp)
}
