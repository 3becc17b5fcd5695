// Package tgi 实现 Hugging Face text-generation-inference 文本生成后端。
package tgi
