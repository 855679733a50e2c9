package translator

import "sync/atomic"

// CharBudget 整个运行共享的软性字符额度
// 额度用尽后不再提交新批次,已提交批次的超出部分照常计入
type CharBudget struct {
	limit int64
	used  atomic.Int64
}

// NewCharBudget 创建额度, limit<=0 表示不限制
func NewCharBudget(limit int64) *CharBudget {
	return &CharBudget{limit: limit}
}

// Add 计入已消耗字符
func (b *CharBudget) Add(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.used.Add(n)
}

// Used 已消耗字符数
func (b *CharBudget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}

// Limit 额度上限
func (b *CharBudget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}

// Exhausted 额度是否已用完
func (b *CharBudget) Exhausted() bool {
	if b == nil || b.limit <= 0 {
		return false
	}
	return b.used.Load() >= b.limit
}
