// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 threed 提供图像转 3D 模型的统一接口。

# 核心接口

  - ThreeDProvider — Name() 与 Generate() 两个方法。
  - GenerateRequest / GenerateResponse / ModelData。
  - MeshyProvider — 提交 image-to-3d 任务（base64 以 data URI 传入），
    按 PollInterval 轮询，返回指定格式（glb、fbx、obj、usdz）的下载地址。

gateway 包通过 provider://meshy 端点把 MeshyProvider 暴露为图生 3D 能力。
*/
package threed
