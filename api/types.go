package api

import "time"

// =============================================================================
// 生成类型
// =============================================================================

// GenerateRequest 表示一次生成请求。
// @Description 生成请求结构
type GenerateRequest struct {
	// 用户提示词，可以为空（此时使用占位文本）
	Prompt string `json:"prompt" example:"a cat sitting on a windowsill"`
}

// GenerationRecord 表示一条审计记录。
// @Description 审计记录结构
type GenerationRecord struct {
	// 记录 ID
	ID uint `json:"id" example:"1"`
	// 运行时间
	Timestamp time.Time `json:"timestamp"`
	// 原始提示词
	OriginalPrompt string `json:"original_prompt" example:"a cat"`
	// 扩写后的提示词或回退文本
	ExpandedPrompt string `json:"expanded_prompt"`
	// 图片路径或状态标记
	ImagePath string `json:"image_path" example:"generated_outputs/generated_image_20260101_120000.png"`
	// 3D 模型路径或状态标记
	Model3DPath string `json:"model_3d_path" example:"Skipped: Image generation failed or was skipped."`
}

// GenerationList 表示分页的审计记录列表。
// @Description 审计记录列表
type GenerationList struct {
	// 记录（按 ID 倒序）
	Items []GenerationRecord `json:"items"`
	// 记录总数
	Total int64 `json:"total" example:"42"`
	// 每页数量
	Limit int `json:"limit" example:"20"`
	// 偏移
	Offset int `json:"offset" example:"0"`
}

// =============================================================================
// 调用方配置类型
// =============================================================================

// UserConfig 表示调用方的能力配置。
// @Description 调用方配置结构
type UserConfig struct {
	// 调用方 ID
	UserID string `json:"user_id,omitempty" example:"super-user"`
	// 需要连接的能力 ID
	AppIDs []string `json:"app_ids" example:"f0997a01-d6d3-a5fe-53d8-561300318557"`
}

// =============================================================================
// 错误类型
// =============================================================================

// ErrorResponse表示错误响应。
// @Description 错误响应结构
type ErrorResponse struct {
	// 错误详情
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 表示错误详细信息。
// @Description 错误详细结构
type ErrorDetail struct {
	// 错误代码
	Code string `json:"code" example:"INVALID_REQUEST"`
	// 人类可读的错误消息
	Message string `json:"message" example:"Invalid request parameters"`
	// 请求是否可以重试
	Retryable bool `json:"retryable,omitempty" example:"false"`
}
