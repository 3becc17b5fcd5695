// Package factory 提供文本生成 Provider 的集中式工厂，
// 通过名称映射创建 Provider 实例，避免 llm 包依赖各 provider 子包。
package factory
