package search

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// HistoryKey 历史记录的持久化键。
	HistoryKey          = "loco_search_history"
	defaultHistoryLimit = 10
)

// HistoryEntry 一条搜索历史，Timestamp 为毫秒时间戳。
type HistoryEntry struct {
	Query     string  `json:"query"`
	Filters   Filters `json:"filters"`
	Timestamp int64   `json:"timestamp"`
}

// HistoryStore 历史记录存储：启动时读取一次，每次保存整体覆盖。
type HistoryStore interface {
	Load(ctx context.Context) ([]HistoryEntry, error)
	Save(ctx context.Context, entries []HistoryEntry) error
}

// KV 简单键值存储。
type KV interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// KVHistory 把历史记录以 JSON 数组写入键值存储。
type KVHistory struct {
	kv  KV
	key string
}

// NewKVHistory 创建基于键值存储的历史记录，key 为空时使用 HistoryKey。
func NewKVHistory(kv KV, key string) *KVHistory {
	if key == "" {
		key = HistoryKey
	}
	return &KVHistory{kv: kv, key: key}
}

// Load 实现 HistoryStore，内容损坏时返回空列表。
func (h *KVHistory) Load(ctx context.Context) ([]HistoryEntry, error) {
	raw, ok, err := h.kv.GetSetting(ctx, h.key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

// Save 实现 HistoryStore。
func (h *KVHistory) Save(ctx context.Context, entries []HistoryEntry) error {
	if entries == nil {
		entries = []HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := h.kv.SetSetting(ctx, h.key, string(data)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func capEntries(entries []HistoryEntry, limit int) []HistoryEntry {
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
