package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 每个连接是独立的内存库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return NewGormStore(db, zaptest.NewLogger(t)), db
}

func TestGormStore_EnsureSchema_Idempotent(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	assert.True(t, db.Migrator().HasTable("generations"))
	for _, col := range []string{"id", "timestamp", "original_prompt", "expanded_prompt", "image_path", "model_3d_path"} {
		assert.True(t, db.Migrator().HasColumn(&GenerationRecord{}, col), col)
	}
}

func TestGormStore_RecordAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	fixed := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	rec := &GenerationRecord{
		OriginalPrompt: "a cat",
		ExpandedPrompt: "A fluffy cat on a windowsill.",
		ImagePath:      "generated_outputs/generated_image_20261019_123000.png",
		Model3DPath:    "Skipped: Image-to-3D app not available.",
	}
	require.NoError(t, store.Record(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.Equal(t, fixed, rec.Timestamp)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.OriginalPrompt, got.OriginalPrompt)
	assert.Equal(t, rec.ExpandedPrompt, got.ExpandedPrompt)
	assert.Equal(t, rec.ImagePath, got.ImagePath)
	assert.Equal(t, rec.Model3DPath, got.Model3DPath)
	assert.True(t, fixed.Equal(got.Timestamp))

	_, err = store.Get(ctx, rec.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_ListNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &GenerationRecord{OriginalPrompt: fmt.Sprintf("p%d", i)}))
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "p4", page[0].OriginalPrompt)
	assert.Equal(t, "p3", page[1].OriginalPrompt)

	page, err = store.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p0", page[0].OriginalPrompt)
}

func TestGormStore_RecordFailsWithoutDatabase(t *testing.T) {
	store, db := newTestStore(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = store.Record(context.Background(), &GenerationRecord{OriginalPrompt: "x"})
	assert.Error(t, err)
	assert.Error(t, store.Record(context.Background(), nil))
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		limit, offset       int
		wantLimit, wantOffs int
	}{
		{0, 0, DefaultListLimit, 0},
		{-1, -5, DefaultListLimit, 0},
		{10, 3, 10, 3},
		{1000, 0, MaxListLimit, 0},
	}
	for _, tt := range tests {
		l, o := NormalizePage(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, l)
		assert.Equal(t, tt.wantOffs, o)
	}
}
