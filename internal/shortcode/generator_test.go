package shortcode

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type storageMock struct {
	mock.Mock
}

func (m *storageMock) NextCounterValue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *storageMock) Exists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func TestGenerator_Allocate(t *testing.T) {
	t.Run("vanity returned verbatim", func(t *testing.T) {
		storage := new(storageMock)
		g := New(storage)

		code, err := g.Allocate(context.Background(), "promo")

		assert.NoError(t, err)
		assert.Equal(t, "promo", code)
		storage.AssertNotCalled(t, "NextCounterValue", mock.Anything)
	})

	t.Run("counter error", func(t *testing.T) {
		errCounter := errors.New("counter error")

		storage := new(storageMock)
		storage.On("NextCounterValue", mock.Anything).Once().Return(int64(0), errCounter)
		g := New(storage)

		code, err := g.Allocate(context.Background(), "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errCounter)
		assert.Empty(t, code)
		storage.AssertExpectations(t)
	})

	t.Run("success on first attempt", func(t *testing.T) {
		storage := new(storageMock)
		storage.On("NextCounterValue", mock.Anything).Once().Return(int64(1025), nil)
		storage.On("Exists", mock.Anything, mock.Anything).Once().Return(false, nil)
		g := New(storage)

		code, err := g.Allocate(context.Background(), "")

		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "1025"))
		assert.Len(t, code, len("1025")+minCodeLength)
		storage.AssertExpectations(t)
	})

	t.Run("retry consumes a fresh counter value", func(t *testing.T) {
		storage := new(storageMock)
		storage.On("NextCounterValue", mock.Anything).Once().Return(int64(1025), nil)
		storage.On("NextCounterValue", mock.Anything).Once().Return(int64(1026), nil)
		storage.On("Exists", mock.Anything, mock.MatchedBy(func(code string) bool {
			return strings.HasPrefix(code, "1025")
		})).Once().Return(true, nil)
		storage.On("Exists", mock.Anything, mock.MatchedBy(func(code string) bool {
			return strings.HasPrefix(code, "1026")
		})).Once().Return(false, nil)
		g := New(storage)

		code, err := g.Allocate(context.Background(), "")

		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "1026"))
		storage.AssertExpectations(t)
	})

	t.Run("collision exhaustion", func(t *testing.T) {
		storage := new(storageMock)
		storage.On("NextCounterValue", mock.Anything).Times(maxAttempts).Return(int64(1025), nil)
		storage.On("Exists", mock.Anything, mock.Anything).Times(maxAttempts).Return(true, nil)
		g := New(storage)

		code, err := g.Allocate(context.Background(), "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrCollisionExhausted)
		assert.Empty(t, code)
		storage.AssertExpectations(t)
	})
}

func TestEncode(t *testing.T) {
	t.Run("zero maps to the first symbol", func(t *testing.T) {
		code, err := Encode(0)

		assert.NoError(t, err)
		assert.Equal(t, string(alphabet[0]), code)
	})

	t.Run("counter prefix and alphabet suffix", func(t *testing.T) {
		code, err := Encode(4096)

		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, strconv.FormatInt(4096, 10)))

		suffix := strings.TrimPrefix(code, "4096")
		assert.Len(t, suffix, minCodeLength)
		for _, c := range suffix {
			assert.Contains(t, alphabet, string(c))
		}
	})

	t.Run("suffixes differ between calls", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 32; i++ {
			code, err := Encode(1)
			assert.NoError(t, err)
			seen[code] = true
		}

		// 32 identical 5-symbol random suffixes would mean broken entropy.
		assert.Greater(t, len(seen), 1)
	})
}
