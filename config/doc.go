// Package config 提供 imagine3d 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（IMAGINE3D_ 前缀）的顺序加载，
// 在进程启动时解析一次后显式传递给各组件。调用方级别的能力列表由
// UserRegistry 实例持有，每次流水线运行前解析为独立快照。
package config
