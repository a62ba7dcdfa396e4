package engine

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategiesRunEveryItem(t *testing.T) {
	for name, s := range map[string]Strategy{
		"sequential": Sequential{},
		"pool":       Pool{Workers: 4},
		"pool-auto":  Pool{},
	} {
		t.Run(name, func(t *testing.T) {
			results := make([]int, 100)
			err := s.Run(len(results), func(i int) error {
				results[i] = i * i
				return nil
			})
			assert.NoError(t, err)
			for i, r := range results {
				assert.Equal(t, i*i, r)
			}
		})
	}
}

func TestStrategiesReturnFirstError(t *testing.T) {
	boom := errors.New("boom")
	for name, s := range map[string]Strategy{
		"sequential": Sequential{},
		"pool":       Pool{Workers: 3},
	} {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			err := s.Run(50, func(i int) error {
				calls.Add(1)
				if i == 7 {
					return boom
				}
				return nil
			})
			assert.ErrorIs(t, err, boom)
			assert.LessOrEqual(t, int(calls.Load()), 50)
		})
	}

	assert.NoError(t, Pool{}.Run(0, func(int) error { return boom }))
}

func TestNewStrategy(t *testing.T) {
	assert.Equal(t, Sequential{}, NewStrategy(1))
	assert.Equal(t, Pool{Workers: 8}, NewStrategy(8))
	assert.Equal(t, Pool{Workers: 0}, NewStrategy(0))
}
