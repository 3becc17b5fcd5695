// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 imagine3d 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，
避免重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertFileContent
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual
  - 数据工具: MustJSON / MustParseJSON / TempOutputDir

# 子包

  - testutil/mocks: MockProvider（文本模型 Provider）与
    MockCapability（网关能力），均支持 Builder 模式与错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithReply(" A ginger cat.")
	exp, _ := expander.New(provider, opts, logger)
	out, err := exp.Expand(ctx, "cat")
*/
package testutil
