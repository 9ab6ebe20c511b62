package utils

import "sync"

// ParallelMap 使用固定数量的 worker 并发处理 input，结果顺序与输入一致。
// workers <= 1 或输入只有一个元素时直接串行执行。
func ParallelMap[T any, R any](input []T, workers int, fn func(T) R) []R {
	n := len(input)
	result := make([]R, n)
	if n == 0 {
		return result
	}

	if workers <= 1 || n == 1 {
		for i, v := range input {
			result[i] = fn(v)
		}
		return result
	}
	if workers > n {
		workers = n
	}

	indexCh := make(chan int, n)
	for i := 0; i < n; i++ {
		indexCh <- i
	}
	close(indexCh)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexCh {
				// 每个下标只被一个 worker 写入，无需加锁
				result[i] = fn(input[i])
			}
		}()
	}
	wg.Wait()
	return result
}
