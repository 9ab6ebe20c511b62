package utils

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParallelMap(t *testing.T) {
	// 测试空输入
	t.Run("empty input", func(t *testing.T) {
		var emptyInput []int
		result := ParallelMap(emptyInput, 4, func(i int) int {
			return i * 2
		})
		assert.Empty(t, result)
	})

	// 测试单元素输入 - 应该直接处理，不使用并发
	t.Run("single input", func(t *testing.T) {
		result := ParallelMap([]int{42}, 4, func(i int) int {
			return i * 2
		})
		assert.Equal(t, []int{84}, result)
	})

	// 测试多元素输入 - 确保顺序正确
	t.Run("multiple inputs with order", func(t *testing.T) {
		input := []int{1, 2, 3, 4, 5}
		result := ParallelMap(input, 3, func(i int) int {
			// 添加随机延迟，测试顺序保持
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
			return i * 2
		})
		assert.Equal(t, []int{2, 4, 6, 8, 10}, result)
	})

	// 测试并发上限 - worker 数量不超过设定值
	t.Run("concurrency bound", func(t *testing.T) {
		input := make([]int, 40)
		for i := range input {
			input[i] = i
		}

		var maxConcurrent, currentConcurrent int32
		ParallelMap(input, 4, func(i int) int {
			current := atomic.AddInt32(&currentConcurrent, 1)
			for {
				m := atomic.LoadInt32(&maxConcurrent)
				if current <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, current) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&currentConcurrent, -1)
			return i
		})

		assert.LessOrEqual(t, maxConcurrent, int32(4))
		assert.GreaterOrEqual(t, maxConcurrent, int32(1))
	})

	// 测试大量任务
	t.Run("many tasks", func(t *testing.T) {
		const taskCount = 10000
		input := make([]int, taskCount)
		for i := range input {
			input[i] = i
		}
		result := ParallelMap(input, 16, func(i int) int {
			return i * i
		})
		for i, v := range result {
			if v != i*i {
				t.Fatalf("incorrect result at index %d: expected %d, got %d", i, i*i, v)
			}
		}
	})
}
