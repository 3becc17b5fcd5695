// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 expander 使用对话微调的文本模型把简短的用户想法扩写为适合
文生图模型的详细描述。

# 流程

 1. 按 ChatTemplate（默认 zephyr，即 TinyLlama-Chat 格式）渲染系统指令与用户输入，
    末尾是助手生成头。
 2. 通过 llm.Provider 做原始文本补全（采样生成，输出不可复现）。
 3. ExtractReply 从回显输入的输出中截取助手回复：优先按输入前缀截取，
    其次定位助手生成头，最后退化为删除已知输入子串。

# 可用性

Load 在启动时构建一次扩写器；后端无法创建或健康检查失败时返回错误，
调用方将其视为"扩写不可用"，流水线使用原始提示词的回退文本。
*/
package expander
