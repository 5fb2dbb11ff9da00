package database

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/clubcms/testutil"
)

// =============================================================================
// 🧪 连接池测试
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	return testutil.NewMockPostgres(t)
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	assert.Equal(t, 5, cfg.MaxPoolSize)
	assert.Equal(t, 10, cfg.MaxOverflow)
	assert.Equal(t, 30*time.Second, cfg.AcquireTimeout)
	assert.Equal(t, 280*time.Second, cfg.ConnRecycle)
	assert.True(t, cfg.PrePing)
	assert.Equal(t, 15, cfg.MaxOpenConns())
	assert.NoError(t, cfg.Validate())

	minimal := MinimalPoolConfig()
	assert.Equal(t, 3, minimal.MaxPoolSize)
	assert.Equal(t, 5, minimal.MaxOverflow)
	assert.Equal(t, 240*time.Second, minimal.ConnRecycle)
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PoolConfig)
		wantErr bool
	}{
		{name: "default", mutate: func(*PoolConfig) {}},
		{name: "zero pool size", mutate: func(c *PoolConfig) { c.MaxPoolSize = 0 }, wantErr: true},
		{name: "negative overflow", mutate: func(c *PoolConfig) { c.MaxOverflow = -1 }, wantErr: true},
		{name: "zero overflow", mutate: func(c *PoolConfig) { c.MaxOverflow = 0 }},
		{name: "zero timeout", mutate: func(c *PoolConfig) { c.AcquireTimeout = 0 }, wantErr: true},
		{name: "negative recycle", mutate: func(c *PoolConfig) { c.ConnRecycle = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPoolConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigurePool(t *testing.T) {
	mockDB, _, _ := setupTestDB(t)
	defer mockDB.Close()

	ConfigurePool(mockDB, PoolConfig{MaxPoolSize: 3, MaxOverflow: 2, AcquireTimeout: time.Second, ConnRecycle: time.Minute})

	assert.Equal(t, 5, mockDB.Stats().MaxOpenConnections)
}

func TestSlotGate_TimesOutWhenFull(t *testing.T) {
	gate := newSlotGate(3, 50*time.Millisecond)
	ctx := context.Background()

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := gate.acquire(ctx)
		require.NoError(t, err)
		releases = append(releases, release)
	}

	start := time.Now()
	_, err := gate.acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolTimeout)
	assert.Equal(t, ErrorKindTransient, Classify(err))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// 释放一个槽位后可以再次获取
	releases[0]()
	release, err := gate.acquire(ctx)
	require.NoError(t, err)
	release()

	for _, r := range releases[1:] {
		r()
	}
}

func TestSlotGate_CallerCanceled(t *testing.T) {
	gate := newSlotGate(1, time.Minute)
	release, err := gate.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gate.acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPoolTimeout)
}

// 连接池大小为 3，4 个长时间占用连接的请求：第 4 个在超时后得到 ErrPoolTimeout
func TestPostgresBackend_FourthHolderTimesOut(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	backend, err := NewPostgresBackend(gormDB, PoolConfig{
		MaxPoolSize:    3,
		MaxOverflow:    0,
		AcquireTimeout: 100 * time.Millisecond,
		ConnRecycle:    time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)

	hold := make(chan struct{})
	started := make(chan struct{}, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = backend.Execute(context.Background(), func(tx *gorm.DB) error {
				started <- struct{}{}
				<-hold
				return nil
			})
		}()
	}
	for i := 0; i < 3; i++ {
		<-started
	}

	err = backend.Execute(context.Background(), func(tx *gorm.DB) error {
		t.Fatal("fourth holder must not run")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolTimeout)
	assert.True(t, IsTransient(err))

	close(hold)
	wg.Wait()
}
