package config

import (
	"sort"
	"sync"
)

// UserRegistry 保存每个调用方的能力配置。
//
// 注册表是一个普通实例，由服务持有并显式传递；每次运行通过 Resolve
// 取得一份独立快照，运行期间的修改不会影响进行中的请求。
type UserRegistry struct {
	mu    sync.RWMutex
	users map[string]UserConfig
}

// NewUserRegistry 以配置文件中的 users 作为初始内容创建注册表
func NewUserRegistry(seed map[string]UserConfig) *UserRegistry {
	r := &UserRegistry{users: make(map[string]UserConfig, len(seed))}
	for id, uc := range seed {
		r.users[id] = uc.clone()
	}
	return r
}

// Set 替换调用方的配置
func (r *UserRegistry) Set(userID string, uc UserConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = uc.clone()
}

// Get 返回调用方配置的副本
func (r *UserRegistry) Get(userID string) (UserConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uc, ok := r.users[userID]
	if !ok {
		return UserConfig{}, false
	}
	return uc.clone(), true
}

// Resolve 返回一次运行使用的能力列表；未知调用方得到空列表，
// 此时两个生成阶段都会被跳过。
func (r *UserRegistry) Resolve(userID string) []string {
	uc, _ := r.Get(userID)
	return uc.AppIDs
}

// Users 返回已注册的调用方 ID（有序）
func (r *UserRegistry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (uc UserConfig) clone() UserConfig {
	if uc.AppIDs == nil {
		return UserConfig{}
	}
	ids := make([]string, len(uc.AppIDs))
	copy(ids, uc.AppIDs)
	return UserConfig{AppIDs: ids}
}
