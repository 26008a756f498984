// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerkv implements store.ConfigStore on BadgerDB.
//
// Widget configurations are small JSON documents written rarely (from the
// dashboard) and read once per pipeline run, which fits an embedded KV
// store with ~100µs access better than a relational table.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store"
	"github.com/dgraph-io/badger/v4"
)

// Compile-time interface implementation check.
var _ store.ConfigStore = (*ConfigStore)(nil)

const configKeyPrefix = "widget_config:"

// ConfigStore is the BadgerDB-backed widget configuration store.
type ConfigStore struct {
	db *badger.DB
}

// Open opens (creating if needed) the config database at path.
func Open(path string) (*ConfigStore, error) {
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create config database directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open config database at %s: %w", path, err)
	}

	slog.Info("Opened widget config store", "path", path)
	return &ConfigStore{db: db}, nil
}

// OpenInMemory opens an ephemeral config store for tests.
func OpenInMemory() (*ConfigStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory config database: %w", err)
	}
	return &ConfigStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ConfigStore) Close() error {
	return s.db.Close()
}

// SaveConfig implements store.ConfigStore.
func (s *ConfigStore) SaveConfig(ctx context.Context, widgetID string,
	cfg *datatypes.WidgetConfig) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal widget config %s: %w", widgetID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(configKeyPrefix+widgetID), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to save widget config %s: %w", widgetID, err)
	}

	slog.Info("Saved widget config", "widgetId", widgetID)
	return nil
}

// GetConfig implements store.ConfigStore.
func (s *ConfigStore) GetConfig(ctx context.Context,
	widgetID string) (*datatypes.WidgetConfig, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cfg datatypes.WidgetConfig
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(configKeyPrefix + widgetID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cfg)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load widget config %s: %w", widgetID, err)
	}
	return &cfg, nil
}
